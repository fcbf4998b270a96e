package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"repoloc/internal/languages"
)

// newLanguageCmd 创建 language 子命令。
// 命令用于展示扫描器能识别的语言以及对应文件后缀，未列出的后缀不会计入统计。
func newLanguageCmd(registry *languages.Registry) *cobra.Command {
	var asJSON bool

	languageCmd := &cobra.Command{
		Use:   "language",
		Short: "展示可识别的语言及后缀",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items := registry.Languages()

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(items)
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if _, err := fmt.Fprintln(writer, "LANGUAGE\tEXTENSIONS"); err != nil {
				return err
			}
			for _, item := range items {
				if _, err := fmt.Fprintf(writer, "%s\t%s\n", item.Name, strings.Join(item.Extensions, ", ")); err != nil {
					return err
				}
			}
			return writer.Flush()
		},
	}

	languageCmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return languageCmd
}
