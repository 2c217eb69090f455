package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/objpool/pkg/json"
	"github.com/ajitpratap0/objpool/pkg/pool"
)

func newLayoutCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Show the chunk layout for an object size",
		Long: `Compute how a chunk is split into header, bitmap and slots.

Example:
  objpool layout --object-size 24 --chunk-size 4096`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			l, err := pool.SetupGeometry(cfg.Pool.ObjectSize, cfg.Pool.ChunkSize, cfg.Pool.MinChunkSize, cfg.Pool.Alignment)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return json.MarshalToWriter(out, l, "  ")
			case "text":
				fmt.Fprintf(out, "object size     %d (slot %d, alignment %d)\n", cfg.Pool.ObjectSize, l.ObjectSizeOf, l.Alignment)
				fmt.Fprintf(out, "requested chunk %d (target %d)\n", cfg.Pool.ChunkSize, l.TargetSize)
				fmt.Fprintf(out, "bitmap          %d words at offset %d\n", l.BitmapCounter, l.BitmapOffset)
				fmt.Fprintf(out, "slots           %d at offset %d (%d bytes)\n", l.ObjectCounter, l.MemoryOffset, l.MemoryCounter)
				fmt.Fprintf(out, "chunk size      %d\n", l.ChunkSize)
				fmt.Fprintf(out, "overhead        %.2f%%\n", 100*float64(l.MemoryOffset)/float64(l.ChunkSize))
				return nil
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	cmd.Flags().Int("object-size", 0, "Object size in bytes")
	cmd.Flags().Int("chunk-size", 0, "Requested chunk size in bytes")
	cmd.Flags().Int("min-chunk-size", 0, "Minimum chunk size in bytes")
	cmd.Flags().Int("alignment", 0, "Slot alignment, a power of two")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")
	return cmd
}
