package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parsehook/mdstream/internal/logging"
	"github.com/parsehook/mdstream/pkg/codeenrich/chromahighlight"
	"github.com/parsehook/mdstream/pkg/mdxservice"
	"github.com/parsehook/mdstream/pkg/pipeline"
	"github.com/parsehook/mdstream/pkg/sanitize/bluemondaysanitize"
	"github.com/parsehook/mdstream/pkg/wire"
)

// newServeCommand builds the "serve" subcommand, the only product
// surface of the CLI: it drains line-delimited WorkerIn JSON from stdin
// and writes line-delimited WorkerOut JSON to stdout, wiring the
// pipeline controller to the concrete Highlighter/Sanitizer/MdxCompiler
// adapters per §4.15. configPath and colorMode are the root command's
// shared --config/--color flags.
func newServeCommand(configPath, colorMode *string) *cobra.Command {
	var chromaStyle string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the streaming document engine over stdin/stdout",
		Long: `serve reads line-delimited JSON WorkerIn messages (INIT, APPEND,
FINALIZE, MDX_COMPILED, MDX_ERROR, SET_CREDITS) from stdin and writes
line-delimited JSON WorkerOut messages to stdout, one transaction at a
time, until stdin is closed or the process is interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fileCfg, err := loadFileConfig(*configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), serveDeps{
				highlighter: chromahighlight.New(chromaStyle),
				sanitizer:   bluemondaysanitize.New(),
				mdxCompiler: mdxservice.New(),
				fileConfig:  fileCfg,
				in:          cmd.InOrStdin(),
				out:         cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVar(&chromaStyle, "chroma-style", "github", "chroma syntax-highlight style name")

	return cmd
}

type serveDeps struct {
	highlighter *chromahighlight.Highlighter
	sanitizer   *bluemondaysanitize.Sanitizer
	mdxCompiler *mdxservice.Stub
	fileConfig  FileConfig
	in          io.Reader
	out         io.Writer
}

func runServe(ctx context.Context, deps serveDeps) error {
	logger := logging.Default()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := pipeline.New(pipeline.Deps{
		Highlighter: deps.highlighter,
		Sanitizer:   deps.sanitizer,
		MdxCompiler: deps.mdxCompiler,
		Logger:      logger,
	})

	in := make(chan wire.WorkerIn)
	out := make(chan wire.WorkerOut)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(ctx, in, out)
	}()

	go func() {
		defer close(in)
		scanner := bufio.NewScanner(deps.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		first := true
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var msg wire.WorkerIn
			if err := json.Unmarshal(line, &msg); err != nil {
				logger.Warn("dropping malformed message", logging.FieldError, err)
				continue
			}
			if first && msg.Type == wire.InInit {
				merged := mergeInit(initPayloadOrZero(msg.Init), deps.fileConfig)
				msg.Init = &merged
			}
			first = false
			select {
			case in <- msg:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Error("reading stdin failed", logging.FieldError, err)
		}
	}()

	enc := json.NewEncoder(deps.out)
	for {
		select {
		case msg := <-out:
			if err := enc.Encode(msg); err != nil {
				return fmt.Errorf("cli: write worker message: %w", err)
			}
		case <-done:
			return nil
		}
	}
}

func initPayloadOrZero(p *wire.InitPayload) wire.InitPayload {
	if p == nil {
		return wire.InitPayload{}
	}
	return *p
}
