package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/contentkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-w string   public base URL of stored blobs
//	-i string   placeholder image URL
//	-t int      request timeout, seconds
//	-m int      max upload size, megabytes
//	-l string   log level
//
// Only the flags listed above are picked out of os.Args, so -c/-config
// and foreign flags do not collide.
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicBaseURL, "w", config.S3PublicBaseURL, "public base URL of stored blobs")
	fs.StringVar(&config.PlaceholderURL, "i", config.PlaceholderURL, "placeholder image URL")

	requestTimeout := fs.Int("t", int(config.RequestTimeout.Seconds()), "request timeout (in seconds)")
	maxUploadSize := fs.Int64("m", config.MaxUploadSize>>20, "max upload size (in megabytes)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := flagx.Parse(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	// -t and -m are coarser than the JSON layer; untouched flags keep its values.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.RequestTimeout = time.Duration(*requestTimeout) * time.Second
		case "m":
			config.MaxUploadSize = *maxUploadSize << 20
		}
	})
}
