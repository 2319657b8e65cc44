/*
Package config provides type-safe access to map[string]any configuration.

# Overview

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values. It
serves two roles: loading service settings from YAML/JSON files, and carrying
the mutable per-call configuration map that scopes every persistence call to
a thread and tenant.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "thread_id": "th-123",
	    "offset":    10,
	})

	threadID := cfg.String("thread_id", "") // "th-123"
	offset := cfg.Int("offset", 0)          // 10
	missing := cfg.String("missing", "x")   // "x"

# Scoping

The checkpoint service clones the caller's config and injects identity keys
before each store call, leaving the caller's map untouched:

	scoped := cfg.Clone()
	scoped.Set("user_id", "u-1")

# Loading

FromFile auto-detects YAML and JSON by extension:

	cfg, err := config.FromFile("service.yaml")
*/
package config
