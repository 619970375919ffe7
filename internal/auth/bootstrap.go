package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/presenca/backend/internal/models"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/pkg/apperr"
	"github.com/presenca/backend/pkg/utils"
)

// BootstrapConfig describes the default administrator and regions.
type BootstrapConfig struct {
	AdminPhone    string
	AdminName     string
	AdminPassword string
	Regions       []string
}

// Bootstrapper seeds the default administrator and regions once per process.
type Bootstrapper struct {
	st     store.Store
	cfg    BootstrapConfig
	logger *zap.Logger

	once sync.Once
	err  error
}

// NewBootstrapper creates a bootstrapper.
func NewBootstrapper(st store.Store, cfg BootstrapConfig, logger *zap.Logger) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrapper{st: st, cfg: cfg, logger: logger}
}

// Ensure runs the seed on first call and returns its result on every call. The original
// administrator is created only when no administrator exists; existing data is never changed.
func (b *Bootstrapper) Ensure(ctx context.Context) error {
	b.once.Do(func() { b.err = b.run(ctx) })
	return b.err
}

func (b *Bootstrapper) run(ctx context.Context) error {
	n, err := b.st.Admins.Count(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n == 0 {
		if err := b.createOriginal(ctx); err != nil {
			return err
		}
	}
	if err := b.st.Regions.EnsureDefaults(ctx, b.cfg.Regions); err != nil {
		return fmt.Errorf("default regions: %w", err)
	}
	return nil
}

// createAttendee creates the administrator's attendee, adopting the record of an instance that
// created the same phone first.
func (b *Bootstrapper) createAttendee(ctx context.Context, a *models.Attendee) (*models.Attendee, error) {
	err := b.st.Attendees.Create(ctx, a)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, apperr.ErrConflict) {
		return nil, fmt.Errorf("create admin attendee: %w", err)
	}
	winner, ferr := b.st.Attendees.FindByPhone(ctx, a.Phone)
	if ferr != nil {
		return nil, fmt.Errorf("find admin attendee: %w", ferr)
	}
	if winner == nil {
		return nil, fmt.Errorf("create admin attendee: %w", err)
	}
	return winner, nil
}

func (b *Bootstrapper) createOriginal(ctx context.Context) error {
	phone := utils.CanonicalPhone(b.cfg.AdminPhone)
	if phone == "" || b.cfg.AdminPassword == "" {
		return apperr.Invalid("bootstrap", "DEFAULT_ADMIN_PHONE and DEFAULT_ADMIN_PASSWORD are required when no admin exists")
	}
	attendee, err := b.st.Attendees.FindByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("find admin attendee: %w", err)
	}
	if attendee == nil {
		attendee = &models.Attendee{Phone: phone, Name: strings.ToUpper(strings.TrimSpace(b.cfg.AdminName))}
		if attendee.Name == "" {
			attendee.Name = "ADMINISTRADOR"
		}
		if attendee, err = b.createAttendee(ctx, attendee); err != nil {
			return err
		}
	}
	hash, err := utils.HashPassword(b.cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	admin := &models.Admin{AttendeeID: attendee.ID, PasswordHash: hash, IsOriginal: true}
	if err := b.st.Admins.Create(ctx, admin); err != nil {
		// another instance seeded concurrently
		if errors.Is(err, apperr.ErrConflict) {
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}
	b.logger.Info("default administrator created", zap.String("phone", utils.MaskPhone(phone)))
	return nil
}
