// Package main provides the entry point for the safemac CLI.
//
// safemac hardens and audits MacCMS installations. It finds installation
// roots on the host, locks their core files with the immutable attribute and
// checks them for the planted files, hijacked configuration and injected
// script of known MacCMS malware.
//
// Usage:
//
//	safemac                  interactive menu
//	safemac scan             update the site list
//	safemac check            run the malware check
//	safemac lock --all       lock every listed site
//
// See --help for all available options.
package main

// main is the entry point for safemac.
func main() {
	Execute()
}
