// Package authz answers the module-level question "may this role perform
// this action on this resource class at all". Object-level filtering is
// the permission index's job; this layer sits in front of it and keeps
// role capabilities declarative in a casbin policy file.
package authz

import (
	"context"
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/pkg/configuration"
	"github.com/iota-uz/varda/pkg/serrors"
)

type Service struct {
	enforcer *casbin.Enforcer
	logger   *logrus.Entry
	mu       sync.RWMutex
}

type Config struct {
	ModelPath  string
	PolicyPath string
	Logger     *logrus.Logger
}

func (c Config) validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("authz: ModelPath is required")
	}
	if c.PolicyPath == "" {
		return fmt.Errorf("authz: PolicyPath is required")
	}
	return nil
}

func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var logger *logrus.Entry
	if cfg.Logger != nil {
		logger = cfg.Logger.WithField("component", "authz")
	} else {
		logger = logrus.WithField("component", "authz")
	}

	enf, err := casbin.NewEnforcer(cfg.ModelPath, fileadapter.NewAdapter(cfg.PolicyPath))
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}
	if err := enf.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("authz: failed to load policies: %w", err)
	}

	return &Service{enforcer: enf, logger: logger}, nil
}

// Check evaluates whether subject may perform action on object.
func (s *Service) Check(ctx context.Context, subject, object, action string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce failed: %w", err)
	}
	return res, nil
}

// CheckAny evaluates a set of subjects, typically every role a principal
// holds, and allows when any of them allows.
func (s *Service) CheckAny(ctx context.Context, subjects []string, object, action string) (bool, error) {
	for _, sub := range subjects {
		ok, err := s.Check(ctx, sub, object, action)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Authorize returns a permission-denied error when no subject allows the
// action.
func (s *Service) Authorize(ctx context.Context, subjects []string, object, action string) error {
	allowed, err := s.CheckAny(ctx, subjects, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.logger.WithContext(ctx).WithFields(logrus.Fields{
			"object": object,
			"action": action,
		}).Warn("authz denied request")
		return serrors.PermissionDenied("role does not cover this resource").WithTemplateData(map[string]string{
			"object": object,
			"action": action,
		})
	}
	return nil
}

func (s *Service) ReloadPolicy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("authz: reload policy failed: %w", err)
	}
	s.logger.WithContext(ctx).Info("authz policy reloaded")
	return nil
}

var (
	defaultServiceOnce sync.Once
	defaultService     *Service
	defaultServiceErr  error
)

// Use returns a singleton Service configured from the environment.
func Use() *Service {
	defaultServiceOnce.Do(func() {
		cfg := configuration.Use()
		defaultService, defaultServiceErr = NewService(Config{
			ModelPath:  cfg.Authz.ModelPath,
			PolicyPath: cfg.Authz.PolicyPath,
			Logger:     cfg.Logger(),
		})
		if defaultServiceErr != nil {
			panic(defaultServiceErr)
		}
	})
	return defaultService
}
