package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/garyjia/budget-gate/internal/application/dispatcher"
	"github.com/garyjia/budget-gate/internal/domain/apperr"
	"github.com/garyjia/budget-gate/internal/domain/event"
	domainwf "github.com/garyjia/budget-gate/internal/domain/workflow"
	"github.com/go-playground/validator/v10"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Clock returns the current time
type Clock func() time.Time

// NewValidator returns a validator that reports JSON field names
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateInput converts validator failures into a ValidationError naming the first bad field
func validateInput(v *validator.Validate, input interface{}) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		return apperr.Validation(field, "failed %q check", fe.Tag())
	}
	return apperr.Validation("", "%v", err)
}

// publish dispatches evt after the primary operation has committed. Handlers
// outlive the request, so they get a context that is not cancelled with it.
func publish(ctx context.Context, d dispatcher.Dispatcher, evt *event.Event) {
	if d == nil {
		return
	}
	d.DispatchAsync(context.WithoutCancel(ctx), evt)
}

// transitionError maps a state machine failure to a ConflictError
func transitionError(entityName string, id int64, from string, trigger domainwf.Trigger, err error) error {
	switch {
	case errors.Is(err, domainwf.ErrTerminalState):
		return apperr.Conflict(apperr.CodeFinalized, "%s %d is already %s", entityName, id, from)
	case errors.Is(err, domainwf.ErrInvalidTransition):
		return apperr.Conflict(apperr.CodeInvalidState, "%s %d cannot %s while %s", entityName, id, strings.ToLower(trigger.String()), from)
	case errors.Is(err, domainwf.ErrInvalidState):
		return apperr.Storage(fmt.Sprintf("load %s", entityName), err)
	default:
		return err
	}
}

// auditNote formats one line of the append-only purchase order note trail
func auditNote(at time.Time, action, actor, notes string) string {
	line := fmt.Sprintf("[%s] %s by %s", at.UTC().Format(time.RFC3339), action, actor)
	if notes = strings.TrimSpace(notes); notes != "" {
		line += ": " + notes
	}
	return line
}

func appendNote(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
