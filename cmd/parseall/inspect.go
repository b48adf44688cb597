package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/doc-parser/internal/parse"
)

type inspectResult struct {
	Document   parse.Document   `json:"document"`
	TOC        []parse.TOCEntry `json:"toc"`
	Images     int              `json:"images"`
	Figures    []string         `json:"figures,omitempty"`
	Tables     int              `json:"tables"`
	Paragraphs int              `json:"paragraphs"`
	Content    *parse.Content   `json:"content,omitempty"`
}

func inspectCmd(o *options) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Extract a single document and print what was found, without writing artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.settings(cmd)
			if err != nil {
				return err
			}
			log, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()
			en, err := newEnhancer(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			doc, c, err := parse.Inspect(cmd.Context(), newDispatcher(cfg, log, en), args[0])
			if err != nil {
				return err
			}
			res := inspectResult{
				Document:   doc,
				TOC:        c.TOC,
				Images:     len(c.Images),
				Tables:     len(c.Tables),
				Paragraphs: len(c.Texts),
			}
			for _, img := range c.Images {
				if img.Figure != "" {
					res.Figures = append(res.Figures, img.Figure)
				}
			}
			if full {
				res.Content = c
			}
			b, _ := json.MarshalIndent(res, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "include text blocks and table cells in the output")
	return cmd
}
