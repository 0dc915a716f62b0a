package service

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haral/audit-reports/internal/model"
	"github.com/haral/audit-reports/internal/store"
)

// cascadeBatch is the page size used when walking a customer's reports.
const cascadeBatch = 500

func normalizeCustomer(c *model.Customer) error {
	c.CompanyName = strings.TrimSpace(c.CompanyName)
	c.ContactPerson = strings.TrimSpace(c.ContactPerson)
	c.Street = strings.TrimSpace(c.Street)
	c.PostalCode = strings.TrimSpace(c.PostalCode)
	c.City = strings.TrimSpace(c.City)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)
	if c.CompanyName == "" {
		return invalid("company_name", "is required")
	}
	return nil
}

// CreateCustomer validates and stores a new customer.
func (s *Service) CreateCustomer(ctx context.Context, c *model.Customer) error {
	if err := normalizeCustomer(c); err != nil {
		return err
	}
	c.ID = ""
	return s.store.CreateCustomer(ctx, c)
}

// UpdateCustomer replaces the editable fields of an existing customer. The
// logo reference is kept unless c sets one.
func (s *Service) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	if err := normalizeCustomer(c); err != nil {
		return err
	}
	existing, err := s.store.GetCustomer(ctx, c.ID)
	if err != nil {
		return err
	}
	if c.LogoRef == "" {
		c.LogoRef = existing.LogoRef
	}
	c.CreatedAt = existing.CreatedAt
	return s.store.UpdateCustomer(ctx, c)
}

// GetCustomer returns a customer by ID.
func (s *Service) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

// ListCustomers returns all customers ordered by company name.
func (s *Service) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.store.ListCustomers(ctx)
}

// DeleteCustomer removes a customer. With the restrict policy a customer that
// still has reports yields ErrConflict; with cascade its reports and their
// documents are deleted first.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if _, err := s.store.GetCustomer(ctx, id); err != nil {
		return err
	}

	for {
		reports, err := s.store.ListReports(ctx, store.ReportFilter{CustomerID: id, Limit: cascadeBatch})
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			break
		}
		if !s.opts.CascadeCustomerDelete {
			return eris.Wrapf(ErrConflict, "customer %s still has reports", id)
		}
		for i := range reports {
			if err := s.DeleteReport(ctx, reports[i].ID); err != nil {
				return eris.Wrapf(err, "service: cascade delete report %s", reports[i].ID)
			}
		}
	}

	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.removeFile(ctx, c.LogoRef)
	zap.L().Info("customer deleted", zap.String("customer_id", id))
	return nil
}

// SetCustomerLogo uploads a logo and points the customer at it. The previous
// logo is removed.
func (s *Service) SetCustomerLogo(ctx context.Context, id, filename string, r io.Reader) (*model.Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := s.upload(ctx, "logos", "customer_"+c.ID, filename, r)
	if err != nil {
		return nil, err
	}
	previous := c.LogoRef
	c.LogoRef = key
	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		s.removeFile(ctx, key)
		return nil, err
	}
	s.removeFile(ctx, previous)
	return c, nil
}

func (s *Service) removeFile(ctx context.Context, key string) {
	if key == "" || s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		zap.L().Warn("remove file failed", zap.String("key", key), zap.Error(err))
	}
}
