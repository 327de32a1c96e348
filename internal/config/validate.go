package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var v *validator.Validate

// graphIDPattern keeps graph ids usable as key prefixes and URL segments.
var graphIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func init() {
	v = validator.New()
	_ = v.RegisterValidation("graphid", func(fl validator.FieldLevel) bool {
		return graphIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("posduration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
}

// Validate checks m against its field rules and the cross-field ones.
func Validate(m *Model) error {
	if err := v.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}

	seen := make(map[string]struct{}, len(m.Tasks))
	for _, t := range m.Tasks {
		if _, dup := seen[t.Ref]; dup {
			return fmt.Errorf("invalid configuration: task '%s' is declared more than once", t.Ref)
		}
		seen[t.Ref] = struct{}{}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	// Drop the root type name: "Model.Server.Addr" -> "Server.Addr".
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	if fe.Param() == "" {
		return fmt.Sprintf("%s fails '%s' (got %v)", field, fe.Tag(), fe.Value())
	}
	return fmt.Sprintf("%s fails '%s=%s' (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
}
