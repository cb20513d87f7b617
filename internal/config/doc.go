// Package config provides configuration structures and utilities for the
// Squirrel crawl frontier. It defines frontier tuning options, ledger
// backend selection, graph sink settings, and the YAML configuration file
// loader.
package config
