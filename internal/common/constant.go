package common

// Alphabets used by RandomString.
const (
	AlphaNumeric      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	LowerAlphaNumeric = "abcdefghijklmnopqrstuvwxyz0123456789"
)
