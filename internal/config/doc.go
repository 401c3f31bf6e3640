// Package config provides configuration structures and utilities for wikimirror.
// It defines the main configuration options for connecting to the wiki,
// crawling the page tree, extracting attachments, optimizing content, and
// writing the mirror and its reports.
package config
