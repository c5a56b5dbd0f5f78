package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
)

func submitCmd() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Submit a file as a print job to a running server",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Server base URL",
				Value:   "http://localhost:8080",
				EnvVars: []string{"PRINTRELAY_SERVER_URL"},
			},
			&cli.StringFlag{
				Name:     "client",
				Usage:    "Client identity the job is queued for",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "printer",
				Usage:    "Logical printer identifier",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "options",
				Usage: "Print options passed through to the spooler",
			},
			&cli.StringFlag{
				Name:  "context",
				Usage: "Opaque context attached to the job",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the submission endpoint",
				EnvVars: []string{"PRINTRELAY_API_KEY"},
			},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("file argument is required")
			}

			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer file.Close()

			pr, pw := io.Pipe()
			mw := multipart.NewWriter(pw)

			go func() {
				err := writeSubmission(mw, c, file, filepath.Base(path))
				mw.Close()
				pw.CloseWithError(err)
			}()

			req, err := http.NewRequest(http.MethodPost, c.String("server")+"/print", pr)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Content-Type", mw.FormDataContentType())
			if key := c.String("api-key"); key != "" {
				req.Header.Set("x-api-key", key)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to submit job: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("server rejected submission: %s: %s", resp.Status, string(body))
			}

			var result struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(body, &result); err == nil && result.ID != "" {
				fmt.Printf("job %s submitted\n", result.ID)
			} else {
				fmt.Println("job submitted")
			}
			return nil
		},
	}
}

func writeSubmission(mw *multipart.Writer, c *cli.Context, file io.Reader, filename string) error {
	fields := map[string]string{
		"clientId":    c.String("client"),
		"printerId":   c.String("printer"),
		"cupsOptions": c.String("options"),
		"context":     c.String("context"),
	}
	for name, value := range fields {
		if value == "" && name != "clientId" && name != "printerId" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}
