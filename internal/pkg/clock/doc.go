// Package clock stamps mail receipts, delivery log rows and queue jobs. Tests
// pin time with Fixed.
package clock
