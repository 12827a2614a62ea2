package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskql/internal/engine"
	"github.com/steveyegge/taskql/internal/query"
)

var explainCmd = &cobra.Command{
	Use:     "explain [QUERY...]",
	GroupID: "query",
	Short:   "Show how a query is parsed without running it",
	Long: `Parse a query and print its structure: the filter tree with operator
precedence made explicit, and the sort, group, and limit directives.

  tq explain "not done" "due before tomorrow OR priority is high"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := queryText(cmd, args)
		if err != nil {
			return err
		}

		ast, err := query.Parse(text)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(struct {
				Explanation string `json:"explanation"`
				Source      string `json:"source"`
			}{engine.ExplainAST(ast), ast.Source})
		}

		fmt.Fprint(cmd.OutOrStdout(), engine.ExplainAST(ast))
		return nil
	},
}

func init() {
	explainCmd.Flags().StringP("file", "f", "", "read the query from a file")
	explainCmd.Flags().Bool("json", false, "print the explanation as JSON")
	rootCmd.AddCommand(explainCmd)
}
