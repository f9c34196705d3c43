package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// statusResponse mirrors the GET /api/v1/chat response body.
type statusResponse struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
	Cache     struct {
		Backend  string    `json:"backend"`
		MaxSize  int       `json:"max_size"`
		Exact    tierStats `json:"exact"`
		Semantic tierStats `json:"semantic"`
	} `json:"cache"`
}

type tierStats struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// newStatusCmd creates the status subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show provider availability and cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(serverURL + "/api/v1/chat")
			if err != nil {
				return fmt.Errorf("reach server: %w", err)
			}
			defer resp.Body.Close()

			var parsed statusResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			if outputJSON {
				out, _ := json.MarshalIndent(parsed, "", "  ")
				fmt.Println(string(out))
				return nil
			}

			statusColor := color.New(color.FgGreen)
			if parsed.Status != "ok" {
				statusColor = color.New(color.FgYellow)
			}
			statusColor.Printf("● %s\n", parsed.Status)

			if len(parsed.Providers) == 0 {
				color.New(color.FgRed).Println("no providers configured")
				os.Exit(1)
			}
			fmt.Printf("providers: %s\n", strings.Join(parsed.Providers, ", "))

			fmt.Printf("cache backend: %s (max %d entries)\n", parsed.Cache.Backend, parsed.Cache.MaxSize)
			printTier("exact", parsed.Cache.Exact)
			printTier("semantic", parsed.Cache.Semantic)
			return nil
		},
	}
}

func printTier(name string, t tierStats) {
	fmt.Printf("  %-9s size=%d hits=%d misses=%d hit_rate=%.1f%%\n", name, t.Size, t.Hits, t.Misses, t.HitRate*100)
}
