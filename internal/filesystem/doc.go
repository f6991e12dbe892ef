/*
Package filesystem retries file operations that fail with ESTALE, the stale
file handle error NFS clients return while a server is failing over or a file
was replaced behind the client's back.

Inputs and outputs of a conversion commonly live on network storage shared
between the API server and queue workers, so the converter stats its outputs
and removes its sidecars through this package:

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	err := filesystem.RemoveWithRetry(passLog, filesystem.DefaultRetryConfig())

Only ESTALE is retried, with exponential backoff (50ms, 100ms, 200ms by
default, capped at MaxBackoff). Every other error is returned at once.

# Metrics

Retries are labeled by volume. Configure the volumes once at startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "work":   cfg.WorkDir,
	    "output": cfg.OutputDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

Paths outside every configured volume are labeled "unknown".
*/
package filesystem
