// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "fmt"

func sprintf(format string, args ...any) string { return fmt.Sprintf(format, args...) }
