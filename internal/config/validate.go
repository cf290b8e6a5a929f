package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Validate checks cfg. exists reports whether a config path was set by any
// layer; it backs the keys that must be present but may be empty.
func Validate(cfg *Config, exists func(path string) bool) error {
	var allErrs []error

	if err := validateStruct(cfg); err != nil {
		allErrs = append(allErrs, err)
	}
	if err := validatePresence(cfg, exists); err != nil {
		allErrs = append(allErrs, err)
	}
	if err := validateEndpoints(cfg); err != nil {
		allErrs = append(allErrs, err)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil {
		allErrs = append(allErrs, fmt.Errorf("log.level %q: %w", cfg.Log.Level, err))
	}
	if cfg.Target.Mandatory && !cfg.Target.Confirm {
		allErrs = append(allErrs, errors.New("target.mandatory requires target.confirm"))
	}

	return joinErrors(allErrs)
}

func validateStruct(cfg *Config) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		return name
	})

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var errs []error
	for _, fe := range verrs {
		// Namespace is "Config.source.addr"; drop the root type name.
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		switch fe.Tag() {
		case "required":
			errs = append(errs, fmt.Errorf("%s is required", path))
		case "oneof":
			errs = append(errs, fmt.Errorf("%s must be one of [%s], got %q", path, fe.Param(), fe.Value()))
		default:
			errs = append(errs, fmt.Errorf("%s failed %s=%s", path, fe.Tag(), fe.Param()))
		}
	}
	return joinErrors(errs)
}

func validatePresence(cfg *Config, exists func(string) bool) error {
	var errs []error

	// Present but possibly empty: "" on target.exchange is the default exchange.
	for _, path := range []string{"target.exchange", "target.routing_key"} {
		if !exists(path) {
			errs = append(errs, fmt.Errorf("%s is required", path))
		}
	}

	if cfg.Declare {
		if strings.TrimSpace(cfg.Source.Exchange) == "" {
			errs = append(errs, errors.New("source.exchange is required when declare is set"))
		}
		if !exists("source.routing_key") {
			errs = append(errs, errors.New("source.routing_key is required when declare is set"))
		}
	}

	return joinErrors(errs)
}

func validateEndpoints(cfg *Config) error {
	var errs []error

	check := func(side, addr string, t TLSConfig) {
		if addr != "" {
			uri, err := amqp.ParseURI(addr)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s.addr: %w", side, err))
			} else if t.Enabled() && uri.Scheme != "amqps" {
				errs = append(errs, fmt.Errorf("%s.tls is set but %s.addr scheme is %q", side, side, uri.Scheme))
			}
		}
		hasCert := strings.TrimSpace(t.CertFile) != ""
		hasKey := strings.TrimSpace(t.KeyFile) != ""
		if hasCert != hasKey {
			errs = append(errs, fmt.Errorf("%s.tls cert_file and key_file must be provided together", side))
		}
	}
	check("source", cfg.Source.Addr, cfg.Source.TLS)
	check("target", cfg.Target.Addr, cfg.Target.TLS)

	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	var filtered []string
	for _, e := range errs {
		if e != nil {
			filtered = append(filtered, e.Error())
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return errors.New(strings.Join(filtered, "\n"))
}
