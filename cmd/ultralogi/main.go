package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arsdragonfly/ultralogi/pkg/config"
	"github.com/arsdragonfly/ultralogi/pkg/logger"
	"github.com/arsdragonfly/ultralogi/pkg/service"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile string
	var dbPath string

	root := &cobra.Command{
		Use:   "ultralogi",
		Short: "Ultralogi - cached SQL-to-GPU buffer pipeline",
		Long: `Ultralogi turns tile and voxel tables in an embedded SQL engine into
packed, GPU-ready byte buffers, with result caching, scalar buffer caches,
and a durable spatial chunk store.`,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides configuration)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Ultralogi v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var seedSize int
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Create and populate the tiles table with a deterministic grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(configFile, dbPath, func(ctx context.Context, svc *service.Service, cfg *config.Config) error {
				size := seedSize
				if size <= 0 {
					size = cfg.Grid.GridSize
				}
				return seedGrid(ctx, svc, size)
			})
		},
	}
	seedCmd.Flags().IntVar(&seedSize, "size", 0, "Grid side length (defaults to grid.grid_size)")
	root.AddCommand(seedCmd)

	root.AddCommand(&cobra.Command{
		Use:   "exec [sql]",
		Short: "Execute a SQL statement, invalidating the result cache on writes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(configFile, dbPath, func(ctx context.Context, svc *service.Service, _ *config.Config) error {
				n, err := svc.ExecuteWithCache(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%d row(s) affected\n", n)
				return nil
			})
		},
	})

	var explain bool
	queryCmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run a query and print row counts, or its plan with --explain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(configFile, dbPath, func(ctx context.Context, svc *service.Service, _ *config.Config) error {
				if explain {
					plan, err := svc.ExplainQuery(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Print(plan)
					return nil
				}
				table, err := svc.QueryTilesCached(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%d row(s)\n", table.NumRows())
				return nil
			})
		},
	}
	queryCmd.Flags().BoolVar(&explain, "explain", false, "Print the query plan instead of executing")
	root.AddCommand(queryCmd)

	var rawVariant bool
	precomputeCmd := &cobra.Command{
		Use:   "precompute",
		Short: "Precompute the GPU vertex buffer (or the raw column buffer with --raw)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(configFile, dbPath, func(ctx context.Context, svc *service.Service, cfg *config.Config) error {
				var elapsed time.Duration
				var err error
				if rawVariant {
					elapsed, err = svc.CacheRawColumns(ctx)
				} else {
					elapsed, err = svc.PrecomputeGPUData(ctx,
						float32(cfg.Render.TileSpacing), float32(cfg.Render.ColorScale))
				}
				if err != nil {
					return err
				}
				fmt.Printf("precompute completed in %.3f ms\n", float64(elapsed.Microseconds())/1000.0)
				return nil
			})
		},
	}
	precomputeCmd.Flags().BoolVar(&rawVariant, "raw", false, "Cache the raw column layout instead of the vertex buffer")
	root.AddCommand(precomputeCmd)

	var exportOut string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the raw column buffer to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(configFile, dbPath, func(ctx context.Context, svc *service.Service, _ *config.Config) error {
				buf, err := svc.ExportRawColumns(ctx)
				if err != nil {
					return err
				}
				if err := os.WriteFile(exportOut, buf, 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Printf("wrote %d bytes to %s\n", len(buf), exportOut)
				return nil
			})
		},
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "columns.bin", "Output path")
	root.AddCommand(exportCmd)

	chunksCmd := &cobra.Command{
		Use:   "chunks",
		Short: "Manage the durable spatial chunk store",
	}
	chunksCmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Regenerate every chunk from the tiles table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(configFile, dbPath, func(ctx context.Context, svc *service.Service, cfg *config.Config) error {
				return svc.GenerateChunks(ctx, cfg.Grid.GridSize, cfg.Grid.ChunkSize,
					float32(cfg.Render.TileSpacing), float32(cfg.Render.ColorScale))
			})
		},
	})
	var chunksOut string
	chunksQueryCmd := &cobra.Command{
		Use:   "query",
		Short: "Aggregate every chunk into one combined vertex buffer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(configFile, dbPath, func(ctx context.Context, svc *service.Service, _ *config.Config) error {
				buf, err := svc.QueryCombinedChunks(ctx)
				if err != nil {
					return err
				}
				if chunksOut == "" {
					fmt.Printf("combined buffer: %d bytes\n", len(buf))
					return nil
				}
				if err := os.WriteFile(chunksOut, buf, 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Printf("wrote %d bytes to %s\n", len(buf), chunksOut)
				return nil
			})
		},
	}
	chunksQueryCmd.Flags().StringVarP(&chunksOut, "out", "o", "", "Write the combined buffer to this path")
	chunksCmd.AddCommand(chunksQueryCmd)
	root.AddCommand(chunksCmd)

	var voxelX, voxelZ int
	voxelCmd := &cobra.Command{
		Use:   "voxel",
		Short: "Manage the voxel world",
	}
	voxelCmd.PersistentFlags().IntVar(&voxelX, "chunk-x", 0, "Chunk x coordinate")
	voxelCmd.PersistentFlags().IntVar(&voxelZ, "chunk-z", 0, "Chunk z coordinate")
	voxelCmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Generate one voxel chunk column",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(configFile, dbPath, func(ctx context.Context, svc *service.Service, _ *config.Config) error {
				return svc.CreateVoxelWorld(ctx, voxelX, voxelZ)
			})
		},
	})
	var voxelOut string
	voxelQueryCmd := &cobra.Command{
		Use:   "query",
		Short: "Export one voxel chunk as a packed buffer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(configFile, dbPath, func(ctx context.Context, svc *service.Service, _ *config.Config) error {
				buf, err := svc.QueryVoxelChunkRaw(ctx, voxelX, voxelZ)
				if err != nil {
					return err
				}
				if voxelOut == "" {
					fmt.Printf("voxel buffer: %d bytes\n", len(buf))
					return nil
				}
				if err := os.WriteFile(voxelOut, buf, 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Printf("wrote %d bytes to %s\n", len(buf), voxelOut)
				return nil
			})
		},
	}
	voxelQueryCmd.Flags().StringVarP(&voxelOut, "out", "o", "", "Write the voxel buffer to this path")
	voxelCmd.AddCommand(voxelQueryCmd)
	root.AddCommand(voxelCmd)

	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print result cache statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(configFile, dbPath, func(ctx context.Context, svc *service.Service, _ *config.Config) error {
				out, err := json.MarshalIndent(svc.CacheStats(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve the Prometheus metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile, dbPath)
			if err != nil {
				return err
			}
			if err := initLogger(cfg); err != nil {
				return err
			}
			logger.Info("serving metrics", zap.String("address", cfg.Metrics.Address))
			http.Handle("/metrics", promhttp.Handler())
			return http.ListenAndServe(cfg.Metrics.Address, nil)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configFile, dbPath string) (*config.Config, error) {
	cfg := config.New()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dbPath != "" {
		cfg.Engine.Path = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Encoding,
	})
}

// withService wraps one command invocation: configuration, logger, service
// lifecycle, and a bounded context.
func withService(configFile, dbPath string, fn func(context.Context, *service.Service, *config.Config) error) error {
	cfg, err := loadConfig(configFile, dbPath)
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc, err := service.New(cfg, logger.Get())
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	return fn(ctx, svc, cfg)
}

// seedGrid creates the tiles table and fills a size x size grid with a
// deterministic terrain pattern.
func seedGrid(ctx context.Context, svc *service.Service, size int) error {
	if _, err := svc.ExecuteWithCache(ctx, `CREATE TABLE IF NOT EXISTS tiles (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		tile_type INTEGER NOT NULL,
		elevation REAL NOT NULL,
		PRIMARY KEY (x, y)
	)`); err != nil {
		return err
	}
	if _, err := svc.ExecuteWithCache(ctx, `DELETE FROM tiles`); err != nil {
		return err
	}

	rows := make([][]interface{}, 0, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			tileType := (x + y) % 7
			elevation := float64(x)*0.5 + float64(y)*0.25
			rows = append(rows, []interface{}{x, y, tileType, elevation})
		}
	}

	n, err := svc.BulkInsert(ctx, `INSERT INTO tiles VALUES (?, ?, ?, ?)`, rows)
	if err != nil {
		return err
	}

	fmt.Printf("seeded %d tiles\n", n)
	return nil
}
