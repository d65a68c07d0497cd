// Package helper provides test doubles and fixtures shared by the tests of the eventstore packages and the CLI.
package helper
