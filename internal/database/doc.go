// Package database opens the PostgreSQL pool used for loop state history.
package database
