package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/jnfrati/replq/api"
	"github.com/jnfrati/replq/internal/evaluator"
	"github.com/jnfrati/replq/internal/input"
	"github.com/jnfrati/replq/internal/models"
	"github.com/jnfrati/replq/internal/storage"
	"github.com/jnfrati/replq/pkg/session"
)

func main() {

	var rootCmd = &cobra.Command{
		Use:   "replq",
		Short: "A queue-driven Node.js REPL harness",
		Long:  "Pipe line-oriented input through an async hand-off queue into a Node.js session",
	}

	rootCmd.PersistentFlags().StringP("host", "", "http://localhost:3333", "replq server host:port")
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a session manifest yaml")

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Pipe stdin through a Node.js session until EOF",
		Run: func(cmd *cobra.Command, args []string) {

			rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			manifest, err := loadManifest(cmd)
			if err != nil {
				log.Fatal(err.Error())
			}

			source := input.NewReaderSource(os.Stdin)

			s, ev, err := buildSession(manifest, source)
			if err != nil {
				log.Fatal(err.Error())
			}
			s.SetOutput(os.Stdout)

			eg, ctx := errgroup.WithContext(rootCtx)

			eg.Go(func() error {
				return source.Start(ctx)
			})

			eg.Go(func() error {
				return s.Run(ctx)
			})

			err = eg.Wait()

			stopEvaluator(ev)

			if err != nil && err != context.Canceled {
				log.Fatal(err.Error())
			}
		},
	}

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start a replq server fed over HTTP",
		Run: func(cmd *cobra.Command, args []string) {

			rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			manifest, err := loadManifest(cmd)
			if err != nil {
				log.Fatal(err.Error())
			}

			source := input.NewNopSource()
			s, ev, err := buildSession(manifest, source)
			if err != nil {
				log.Fatal(err.Error())
			}

			eg, ctx := errgroup.WithContext(rootCtx)

			eg.Go(func() error {
				return s.Run(ctx)
			})

			eg.Go(func() error {
				return api.Start(ctx, "localhost:3333", s)
			})

			err = eg.Wait()

			stopEvaluator(ev)

			if err != nil {
				if err == context.Canceled {
					log.Println("Server stopped")
					return
				}
				log.Printf("Server error: %v", err)
				os.Exit(1)
			}

			log.Println("Server shutdown complete")
		},
	}

	var evalCmd = &cobra.Command{
		Use:   "eval [code]",
		Short: "Submit a chunk of code to a running replq server",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			res, err := mutate[map[string]any](cmd, "/v0/eval", api.EvalRequest{Code: args[0]})
			if err != nil {
				log.Fatal(err.Error())
			}

			log.Printf("%v", res)
		},
	}

	var evalFileCmd = &cobra.Command{
		Use:   "eval-file [filepath]",
		Short: "Submit a file's contents to a running replq server",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			filepath := path.Clean(args[0])

			code, err := os.ReadFile(filepath)
			if err != nil {
				log.Fatal(err.Error())
			}

			res, err := mutate[map[string]any](cmd, "/v0/eval", api.EvalRequest{Code: string(code)})
			if err != nil {
				log.Fatal(err.Error())
			}

			log.Printf("%v", res)
		},
	}

	var historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List evaluations done by a running replq server",
		Run: func(cmd *cobra.Command, args []string) {
			evals, err := query[[]models.Evaluation](cmd, "/v0/evals")
			if err != nil {
				log.Fatalf("%v", err)
			}

			if len(evals) == 0 {
				log.Println("No evaluations yet")
				return
			}

			log.Println("Evaluations:")
			log.Println("------------")
			for _, e := range evals {
				fmt.Printf("• %s (%s)\n  Status: %d\n  Output: %s\n\n", e.Code, e.Id, e.Status, e.Output)
			}
		},
	}

	var closeCmd = &cobra.Command{
		Use:   "close",
		Short: "Close a running replq server's queue",
		Run: func(cmd *cobra.Command, args []string) {
			res, err := mutate[map[string]any](cmd, "/v0/close", struct{}{})
			if err != nil {
				log.Fatal(err.Error())
			}

			log.Printf("%v", res)
		},
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(evalFileCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(closeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadManifest(cmd *cobra.Command) (*models.SessionManifestV1, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		return &models.SessionManifestV1{Version: models.SessionManifestVersion_v1}, nil
	}

	manifestYaml, err := os.ReadFile(path.Clean(configPath))
	if err != nil {
		return nil, err
	}

	manifest := new(models.SessionManifestV1)
	if err := yaml.Unmarshal(manifestYaml, manifest); err != nil {
		return nil, err
	}

	return manifest, nil
}

func buildSession(
	manifest *models.SessionManifestV1,
	source input.Source,
) (*session.Session, evaluator.Evaluator, error) {
	ev, err := evaluator.NewEvaluator(evaluator.EvaluatorRuntime_NodeJS, manifest)
	if err != nil {
		return nil, nil, err
	}

	history, err := storage.NewStorage[models.Evaluation](storage.StorageType_Memory)
	if err != nil {
		return nil, nil, err
	}

	s, err := session.NewSession(manifest, source, ev, history)
	if err != nil {
		return nil, nil, err
	}

	return s, ev, nil
}

func stopEvaluator(ev evaluator.Evaluator) {
	stopper, ok := ev.(interface{ Stop(context.Context) error })
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := stopper.Stop(ctx); err != nil {
		log.Printf("evaluator stop: %v", err)
	}
}

func query[T any](cmd *cobra.Command, path string) (T, error) {
	var obj T

	host, _ := cmd.Flags().GetString("host")

	res, err := http.Get(host + path)
	if err != nil {
		return obj, err
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(&obj); err != nil {
		return obj, err
	}

	return obj, nil
}

func mutate[RT any](cmd *cobra.Command, path string, body any) (RT, error) {
	var obj RT

	host, _ := cmd.Flags().GetString("host")

	bodyJson := bytes.NewBuffer([]byte{})
	if err := json.NewEncoder(bodyJson).Encode(body); err != nil {
		return obj, err
	}

	res, err := http.Post(host+path, "application/json", bodyJson)
	if err != nil {
		return obj, err
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(&obj); err != nil {
		return obj, err
	}

	return obj, nil
}
