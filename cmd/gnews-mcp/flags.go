package main

import (
	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/gnews-mcp/internal/gnews"
)

// registerCommon binds the arguments shared by both one-shot commands.
func registerCommon(cmd *cobra.Command, c *gnews.Common) {
	cmd.Flags().String("lang", "", "2-letter language code")
	cmd.Flags().String("country", "", "2-letter country code")
	cmd.Flags().IntVar(&c.Max, "max", gnews.DefaultMax, "number of articles (1-100)")
	cmd.Flags().IntVar(&c.Page, "page", gnews.DefaultPage, "result page")
	cmd.Flags().String("from", "", "oldest publication date (YYYY-MM-DD or ISO 8601)")
	cmd.Flags().String("to", "", "newest publication date (YYYY-MM-DD or ISO 8601)")
}

// applyCommon copies the string flags that were set; unset flags stay absent.
func applyCommon(cmd *cobra.Command, c *gnews.Common) {
	c.Lang = optional(cmd, "lang")
	c.Country = optional(cmd, "country")
	c.DateFrom = optional(cmd, "from")
	c.DateTo = optional(cmd, "to")
}

func optional(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return nil
	}
	return &v
}
