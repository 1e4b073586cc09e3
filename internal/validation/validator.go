package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/MdanzDev/nickstore/internal/store"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// register struct-level validation for AddToCartRequest: price must not be
	// negative and zone-partitioned games need a zone id.
	v.RegisterStructValidation(addToCartStructValidation, AddToCartRequest{})

	return v
}

func addToCartStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(AddToCartRequest)

	if req.Price.IsNegative() {
		sl.ReportError(req.Price, "price", "Price", "gte", "0")
	}
	if store.RequiresZoneID(req.GameSlug) && req.ZoneID == "" {
		sl.ReportError(req.ZoneID, "zoneId", "ZoneID", "required_for_game", req.GameSlug)
	}
}

// Normalizer is implemented by requests that clean themselves up before validation.
type Normalizer interface {
	Normalize()
}

// Validate normalizes out when possible and runs struct validation.
func Validate(v *validatorv10.Validate, out interface{}) error {
	if n, ok := out.(Normalizer); ok {
		n.Normalize()
	}
	return v.Struct(out)
}
