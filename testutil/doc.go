// Package testutil provides test doubles shared across package tests.
package testutil
