// Command convertctl is the operator CLI for the media converter.
//
// Usage:
//
//	convertctl <command> [flags] [args]
//
// Commands:
//
//	convert     Convert one file in this process, without the API server.
//	            Flags must come before the input path:
//
//	              convertctl convert -kind webp -target 8MiB clip.mp4
//	              convertctl convert -kind mkv -target 50MB -trim-start 12.5 \
//	                  -trim-duration 90 -markers chapters.json talk.mp4
//
//	            Progress is drawn on stderr; -json prints the result as JSON
//	            instead. The exit code is 1 when the conversion fails.
//
//	probe       Print ffprobe metadata for a file as JSON.
//
//	hash-token  Read an API token (twice on a terminal, one line when piped)
//	            and print its bcrypt hash for API_TOKEN_HASH. With -generate a
//	            random token is created and printed to stderr.
//
//	jobs        List recent jobs from the server's SQLite history.
//
//	version     Print build information.
//
// Sizes accept B, KB, MB and GB (decimal) or KiB, MiB, GiB and the K, M and G
// shorthands (binary). A bare number is bytes.
//
// Environment:
//
//	FFMPEG_PATH, FFPROBE_PATH - Encoder binaries (default: from PATH)
//	WORK_DIR                  - Pass statistics and chapter sidecars
//	OUTPUT_DIR                - Output directory (default: next to the input)
//	DATABASE_DIR              - Path to database directory (default: /database)
//	LOG_LEVEL                 - Converter log level (default: warn)
package main
