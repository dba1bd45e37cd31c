// Package config reads the process environment into the settings the CLI
// runs with. Behavior is controlled entirely through environment variables;
// a .env file in the working directory is honored as a convenience.
package config
