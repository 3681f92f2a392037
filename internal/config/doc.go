// Package config provides configuration structures and utilities for safemac.
// It defines where sites are searched for, where the site list, hit logs and
// history live, and which protection and detection rules apply.
package config
