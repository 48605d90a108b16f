package handler

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"schooladmin/internal/attendance"
)

var validatorsOnce sync.Once

// registerValidators adds the attendance enum and date rules to gin's binding
// validator.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		rules := map[string]validator.Func{
			"attendance_status": func(fl validator.FieldLevel) bool {
				return attendance.Status(fl.Field().String()).Valid()
			},
			"session_type": func(fl validator.FieldLevel) bool {
				return attendance.SessionType(fl.Field().String()).Valid()
			},
			"entity_type": func(fl validator.FieldLevel) bool {
				return attendance.EntityType(fl.Field().String()).Valid()
			},
			"iso_date": func(fl validator.FieldLevel) bool {
				_, err := time.Parse(attendance.DateLayout, fl.Field().String())
				return err == nil
			},
		}
		for tag, fn := range rules {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(err)
			}
		}
	})
}
