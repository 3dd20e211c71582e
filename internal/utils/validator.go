package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/rajivgeraev/swapeco-api/internal/apperr"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// В сообщениях используем имена полей из JSON
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate проверяет структуру по тегам validate и возвращает
// apperr.InvalidInput с описанием всех нарушений
func Validate(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("can't validate %T: %w", v, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.InvalidInput(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Поле " + fe.Field() + " обязательно"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Поле %s должно содержать не менее %s символов", fe.Field(), fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Поле %s должно содержать не менее %s элементов", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("Поле %s должно быть не меньше %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Поле %s должно содержать не более %s символов", fe.Field(), fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Поле %s должно содержать не более %s элементов", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("Поле %s должно быть не больше %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("Поле %s должно быть одним из: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("Поле %s некорректно (%s)", fe.Field(), fe.Tag())
	}
}
