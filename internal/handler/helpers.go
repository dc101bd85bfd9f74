package handler

import (
	"errors"
	"net/http"
	"reflect"

	"estancopro/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails; the caller
// should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.Validation("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, apierror.ValidationFields(fields))
		return false
	}
	return true
}

// bindQueryAndValidate binds query string filters and runs validator tags.
func bindQueryAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.Validation("invalid query: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, apierror.ValidationFields(fields))
		return false
	}
	return true
}

// respondError maps a service error to its HTTP status. Typed errors carry
// their own status; anything else is a 500 pushed through the ErrorHandler
// middleware so internals never leak.
func respondError(c *gin.Context, err error) {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status(), apiErr)
		return
	}
	_ = c.Error(err)
}

// parseIDParam parses a uuid path segment, answering 400 on garbage input.
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}
