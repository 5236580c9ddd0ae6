package avcstream

import (
	"context"

	"github.com/user/avcstream/pkg/adapters/ffmpegcodec"
	"github.com/user/avcstream/pkg/adapters/logger"
	"github.com/user/avcstream/pkg/adapters/osfilesystem"
	"github.com/user/avcstream/pkg/orchestrator"
	"github.com/user/avcstream/pkg/ports"
)

// Encode runs cfg against the local ffmpeg encoders and the OS file system.
// A nil logger discards all output.
func Encode(ctx context.Context, cfg Config, log ports.Logger) (orchestrator.RunResult, error) {
	return EncodeWith(ctx, cfg, ffmpegcodec.NewProvider(log), osfilesystem.New(), log)
}

// EncodeWith runs cfg against the given codec provider and file system.
func EncodeWith(ctx context.Context, cfg Config, provider ports.CodecProvider, fs ports.FileSystem, log ports.Logger) (orchestrator.RunResult, error) {
	if log == nil {
		log = logger.NewNoop()
	}
	return orchestrator.New(provider, fs, log).Run(ctx, cfg.ToOrchestratorConfig())
}
