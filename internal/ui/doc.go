// Package ui holds the terminal styles shared by CLI commands.
//
// [Styles] colors headings, outcomes and hints with lipgloss. Colors are dropped automatically
// when output is not a terminal, so rendered text stays plain in pipes and tests.
package ui
