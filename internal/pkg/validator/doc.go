// Package validator validates request and job structs.
//
// Callers depend on Validator; V10Validator backs it with
// go-playground/validator v10 and reports failures keyed by JSON field name.
package validator
