package services

import (
	"context"
	"fmt"

	"financetracker/internal/core"
	applog "financetracker/internal/log"
	"financetracker/internal/storage"
)

// CategoryDefaults is one default category and its subcategories.
type CategoryDefaults struct {
	Name          string
	Subcategories []string
}

// DefaultAccount is the account created on first setup.
const DefaultAccount = "Me"

// DefaultCategories is the classification tree created on first setup.
var DefaultCategories = []CategoryDefaults{
	{"Home Expenses", []string{
		"Mortgage/Rent", "Home/Rental Insurance", "Electricity", "Gas/Oil",
		"Water/Sewer/Trash", "Phone", "Cable/Satellite", "Internet",
		"Furnishings/Appliances", "Lawn/Garden", "Maintenance/Supplies",
		"Improvements", "Other",
	}},
	{"Transportation", []string{
		"Vehicle Payments", "Auto Insurance", "Fuel", "Bus/Taxi/Train Fare",
		"Repairs", "Registration/License", "Other",
	}},
	{"Health", []string{
		"Health Insurance", "Doctor/Dentist", "Medicine/Drugs", "Health Club Dues",
		"Life Insurance", "Veterinarian/Pet Care", "Other",
	}},
	{"Gifts", []string{
		"Gifts Given", "Charitable Donations", "Religious Donations", "Other",
	}},
	{"Subscriptions", []string{
		"Newspaper", "Magazines", "Dues/Memberships", "Other",
	}},
	{"Daily Living", []string{
		"Groceries", "Personal Supplies", "Clothing", "Cleaning",
		"Education/Lessons", "Dining/Eating Out", "Salon/Barber", "Pet Food", "Other",
	}},
	{"Entertainment", []string{
		"Videos/DVDs", "Music", "Games", "Rentals", "Movies/Theater",
		"Concerts/Plays", "Books", "Hobbies", "Film/Photos", "Sports",
		"Outdoor Recreation", "Toys/Gadgets", "Vacation/Travel", "Other",
	}},
	{"Savings", []string{
		"Emergency Fund", "Transfer to Savings", "Retirement (401k, IRA)",
		"Investments", "Education", "Other",
	}},
	{"Obligations", []string{
		"Student Loan", "Other Loan", "Credit Cards", "Alimony/Child Support",
		"Federal Taxes", "State/Local Taxes", "Other",
	}},
	{"Other", []string{
		"Bank Fees", "Postage", "Other",
	}},
}

// SeedResult counts the rows a seed run created.
type SeedResult struct {
	Accounts      int `json:"accounts"`
	Categories    int `json:"categories"`
	Subcategories int `json:"subcategories"`
}

// Seeder creates the default account and classification tree. Rows that
// already exist by name are left alone, so running it twice is harmless.
type Seeder struct {
	store  *storage.Store
	logger *applog.Logger
}

func NewSeeder(store *storage.Store, logger *applog.Logger) *Seeder {
	return &Seeder{store: store, logger: logger.WithComponent(applog.ComponentStorage)}
}

func (s *Seeder) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult

	account, err := s.store.Accounts.FindOne(ctx, core.Fields{core.FieldName: DefaultAccount})
	if err != nil {
		return res, fmt.Errorf("find default account: %w", err)
	}
	if account == nil {
		if _, err := s.store.Accounts.Create(ctx, core.Fields{core.FieldName: DefaultAccount}); err != nil {
			return res, fmt.Errorf("create default account: %w", err)
		}
		res.Accounts++
	}

	for _, def := range DefaultCategories {
		cat, err := s.store.Categories.FindOne(ctx, core.Fields{core.FieldName: def.Name})
		if err != nil {
			return res, fmt.Errorf("find category %q: %w", def.Name, err)
		}
		if cat == nil {
			created, err := s.store.Categories.Create(ctx, core.Fields{core.FieldName: def.Name})
			if err != nil {
				return res, fmt.Errorf("create category %q: %w", def.Name, err)
			}
			cat = &created
			res.Categories++
		}

		for _, name := range def.Subcategories {
			fields := core.Fields{core.FieldName: name, core.FieldCategoryID: cat.ID}
			sub, err := s.store.Subcategories.FindOne(ctx, fields)
			if err != nil {
				return res, fmt.Errorf("find subcategory %q: %w", name, err)
			}
			if sub != nil {
				continue
			}
			if _, err := s.store.Subcategories.Create(ctx, fields); err != nil {
				return res, fmt.Errorf("create subcategory %q: %w", name, err)
			}
			res.Subcategories++
		}
	}

	s.logger.InfoContext(ctx, "Default data seeded",
		applog.FieldOperation, applog.OpSeed,
		"accounts", res.Accounts,
		"categories", res.Categories,
		"subcategories", res.Subcategories)
	return res, nil
}
