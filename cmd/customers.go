package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/haral/audit-reports/internal/model"
)

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "Manage customers",
}

// -- customers list --

var customersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List customers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		list, err := env.Service.ListCustomers(ctx)
		if err != nil {
			return eris.Wrap(err, "customers list")
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No customers found.")
			return nil
		}
		formatCustomersList(os.Stdout, list)
		return nil
	},
}

// -- customers show --

var customersShowCmd = &cobra.Command{
	Use:   "show <customer-id>",
	Short: "Show a customer as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.Service.GetCustomer(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "customers show")
		}
		return writeJSON(os.Stdout, c)
	},
}

// -- customers create --

var newCustomer model.Customer

var customersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a customer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		c := newCustomer
		if err := env.Service.CreateCustomer(ctx, &c); err != nil {
			return eris.Wrap(err, "customers create")
		}
		fmt.Fprintln(os.Stdout, c.ID)
		return nil
	},
}

// -- customers delete --

var customersDeleteCmd = &cobra.Command{
	Use:   "delete <customer-id>",
	Short: "Delete a customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Service.DeleteCustomer(ctx, args[0]); err != nil {
			return eris.Wrap(err, "customers delete")
		}
		return nil
	},
}

func formatCustomersList(out io.Writer, list []model.Customer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tCONTACT\tCITY")
	_, _ = fmt.Fprintln(w, "--\t-------\t-------\t----")
	for _, c := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			truncateID(c.ID),
			truncate(c.CompanyName, 40),
			c.ContactPerson,
			c.City,
		)
	}
	_ = w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncateID shortens UUIDs for table output.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	f := customersCreateCmd.Flags()
	f.StringVar(&newCustomer.CompanyName, "name", "", "company name (required)")
	f.StringVar(&newCustomer.ContactPerson, "contact", "", "contact person")
	f.StringVar(&newCustomer.Street, "street", "", "street and number")
	f.StringVar(&newCustomer.PostalCode, "postal-code", "", "postal code")
	f.StringVar(&newCustomer.City, "city", "", "city")
	f.StringVar(&newCustomer.Phone, "phone", "", "phone")
	f.StringVar(&newCustomer.Email, "email", "", "email")
	_ = customersCreateCmd.MarkFlagRequired("name")

	customersCmd.AddCommand(customersListCmd, customersShowCmd, customersCreateCmd, customersDeleteCmd)
	rootCmd.AddCommand(customersCmd)
}
