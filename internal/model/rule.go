package model

// ProtectionRule describes which parts of a site are made immutable and which
// must remain writable.
//
// ExcludeDirs always win: after a lock run every entry below an exclude
// directory is writable, even if it is nested under one of LockDirs.
type ProtectionRule struct {
	// LockDirs are directories, relative to the site root, whose whole
	// subtree is made immutable.
	LockDirs []string `yaml:"lockDirs" json:"lock_dirs"`

	// LockFilePatterns are glob patterns matched against regular files
	// directly in the site root (non-recursive).
	LockFilePatterns []string `yaml:"lockFilePatterns" json:"lock_file_patterns"`

	// ExcludeDirs are directories, relative to the site root, that must stay
	// writable (cache and upload paths).
	ExcludeDirs []string `yaml:"excludeDirs" json:"exclude_dirs"`
}

// DefaultProtectionRule returns the stock MacCMS protection layout.
func DefaultProtectionRule() ProtectionRule {
	return ProtectionRule{
		LockDirs: []string{
			"application",
			"thinkphp",
			"template",
			"public/static/js",
			"public/static/css",
			"extend",
			"static",
			"vendor",
		},
		LockFilePatterns: []string{
			"api.php",
			"index.php",
			"*.php",
		},
		ExcludeDirs: []string{
			"runtime",
			"upload",
			"uploads",
			"static/upload",
			"public/upload",
			"public/uploads",
			"public/static/upload",
		},
	}
}

// Clone returns a deep copy so callers can never mutate a shared rule.
func (r ProtectionRule) Clone() ProtectionRule {
	return ProtectionRule{
		LockDirs:         append([]string(nil), r.LockDirs...),
		LockFilePatterns: append([]string(nil), r.LockFilePatterns...),
		ExcludeDirs:      append([]string(nil), r.ExcludeDirs...),
	}
}

// ExactFileSignature flags a site when one of a fixed set of files exists.
// The files are known planted entry points.
type ExactFileSignature struct {
	Name     string   `yaml:"name" json:"name"`
	RelPaths []string `yaml:"paths" json:"paths"`
}

// ContentHijackSignature flags a configuration file whose content no longer
// looks like the legitimate one.
//
// The first existing entry of RelPaths is examined. The file is hijacked when
// MustContain is absent, or when MustNotContain is set and present.
type ContentHijackSignature struct {
	Name             string   `yaml:"name" json:"name"`
	RelPaths         []string `yaml:"paths" json:"paths"`
	MustContain      string   `yaml:"mustContain" json:"must_contain"`
	MustNotContain   string   `yaml:"mustNotContain,omitempty" json:"must_not_contain,omitempty"`
	CleanReplacement string   `yaml:"cleanReplacement" json:"-"`
}

// PatternSignature counts regular expression matches in script and template files.
type PatternSignature struct {
	Name          string `yaml:"name" json:"name"`
	Regex         string `yaml:"regex" json:"regex"`
	CaseSensitive bool   `yaml:"caseSensitive,omitempty" json:"case_sensitive,omitempty"`
}

// CleanAddonsContent is the known-good application/extra/addons.php shipped
// with MacCMS. Overwriting a hijacked file with it disables installed plugins.
const CleanAddonsContent = `<?php

return array (
  'autoload' => false,
  'hooks' => 
  array (
  ),
  'route' => 
  array (
  ),
);`

// RuleSet groups every detection rule evaluated against a site.
type RuleSet struct {
	ExactFiles []ExactFileSignature     `yaml:"exactFiles" json:"exact_files"`
	Hijacks    []ContentHijackSignature `yaml:"hijacks" json:"hijacks"`
	Patterns   []PatternSignature       `yaml:"patterns" json:"patterns"`
}

// DefaultRuleSet returns the signatures of the known MacCMS compromise.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		ExactFiles: []ExactFileSignature{
			{
				Name: "system-active",
				RelPaths: []string{
					"application/extra/active.php",
					"application/extra/system.php",
				},
			},
		},
		Hijacks: []ContentHijackSignature{
			{
				Name: "addons-hijack",
				RelPaths: []string{
					"application/extra/addons.php",
					"application/extra/addones.php",
				},
				MustContain:      "'hooks'",
				MustNotContain:   "ThinkPHP",
				CleanReplacement: CleanAddonsContent,
			},
		},
		Patterns: DefaultPatterns(),
	}
}

// DefaultPatterns returns the injected-script indicators in reporting order.
func DefaultPatterns() []PatternSignature {
	return []PatternSignature{
		{Name: "navigator.platform", Regex: `navigator\.platform`},
		{Name: "base64", Regex: `base64`},
		{Name: "hex_string", Regex: `\\x[0-9a-fA-F]{2}`, CaseSensitive: true},
		{Name: "appendChild", Regex: `appendChild`},
		{Name: "Mac|Win", Regex: `Mac\|Win`},
	}
}
