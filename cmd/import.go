package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/haral/audit-reports/internal/model"
	"github.com/haral/audit-reports/internal/service"
)

var importFile string

// fixture is the YAML layout accepted by "import":
//
//	customers:
//	  - company_name: IGM GmbH
//	    city: Speyer
//	    reports:
//	      - author: Erika Muster
//	        inputs: {film_thickness: 23, pallets_per_year: 3000}
//	        alternatives: [{film_thickness: 17}]
type fixture struct {
	Customers []fixtureCustomer `yaml:"customers"`
}

type fixtureCustomer struct {
	model.Customer `yaml:",inline"`
	Reports        []fixtureReport `yaml:"reports"`
}

type fixtureReport struct {
	Title        string              `yaml:"title"`
	AuditNumber  string              `yaml:"audit_number"`
	Author       string              `yaml:"author"`
	Phone        string              `yaml:"phone"`
	Email        string              `yaml:"email"`
	Status       model.ReportStatus  `yaml:"status"`
	Inputs       model.Inputs        `yaml:"inputs"`
	Alternatives []model.Alternative `yaml:"alternatives"`
	Images       []model.Image       `yaml:"images"`
}

func (f fixtureReport) report(customerID string) *model.Report {
	return &model.Report{
		CustomerID:   customerID,
		Title:        f.Title,
		AuditNumber:  f.AuditNumber,
		Author:       f.Author,
		Phone:        f.Phone,
		Email:        f.Email,
		Status:       f.Status,
		Inputs:       f.Inputs,
		Alternatives: f.Alternatives,
		Images:       f.Images,
	}
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import customers and reports from a YAML fixture",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		fx, err := loadFixture(importFile)
		if err != nil {
			return err
		}

		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		customers, reports, err := importFixture(ctx, env.Service, fx)
		if err != nil {
			return eris.Wrap(err, "import fixture")
		}

		zap.L().Info("import complete",
			zap.Int("customers", customers),
			zap.Int("reports", reports),
			zap.String("file", importFile),
		)
		return nil
	},
}

func loadFixture(path string) (*fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read fixture")
	}
	var fx fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, eris.Wrap(err, "parse fixture")
	}
	return &fx, nil
}

// importFixture creates every customer and its reports. It stops at the
// first failure; records created before it are kept.
func importFixture(ctx context.Context, svc *service.Service, fx *fixture) (int, int, error) {
	var customers, reports int
	for i := range fx.Customers {
		fc := &fx.Customers[i]
		c := fc.Customer
		if err := svc.CreateCustomer(ctx, &c); err != nil {
			return customers, reports, eris.Wrapf(err, "customer %q", fc.CompanyName)
		}
		customers++

		for j, fr := range fc.Reports {
			if err := svc.ImportReport(ctx, fr.report(c.ID)); err != nil {
				return customers, reports, eris.Wrapf(err, "customer %q report %d", fc.CompanyName, j+1)
			}
			reports++
		}
	}
	return customers, reports, nil
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to YAML fixture (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
