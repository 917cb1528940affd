package config

const (
	defaultConfigPath         = "~/.config/mediasync/config.toml"
	defaultLibraryDir         = "~/Media"
	defaultRemoteType         = "sftp"
	defaultSFTPPort           = 22
	defaultKnownHostsPath     = "~/.ssh/known_hosts"
	defaultConnectTimeout     = 30
	defaultS3Region           = "us-east-1"
	defaultMoviesDir          = "Movies"
	defaultShowsDir           = "Shows"
	defaultMusicDir           = "Music"
	defaultBooksDir           = "Books"
	defaultDownloadsDir       = "Downloads"
	defaultMovieMinSizeGB     = 1.0
	defaultTrackingFileName   = "tracking.json"
	defaultRetryAttempts      = 3
	defaultRetryDelaySeconds  = 2
	defaultPruneDaysOld       = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
	defaultNotifyTimeout      = 10
	defaultNotifySyncMinFiles = 1
)

var (
	defaultVideoExtensions = []string{
		".mkv", ".mp4", ".avi", ".mov", ".wmv", ".flv", ".m4v", ".webm", ".ts", ".m2ts", ".mpg", ".mpeg",
	}
	defaultAudioExtensions = []string{
		".mp3", ".flac", ".m4a", ".aac", ".ogg", ".opus", ".wav", ".wma", ".ape", ".alac",
	}
	defaultBookExtensions = []string{
		".epub", ".mobi", ".azw", ".azw3", ".pdf", ".cbz", ".cbr", ".cb7", ".djvu",
	}
	defaultCompanionExtensions = []string{
		".srt", ".sub", ".idx", ".ass", ".ssa", ".vtt", ".smi", ".nfo", ".xml", ".jpg", ".jpeg", ".png", ".webp", ".txt",
	}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir(),
		},
		Remote: Remote{
			Type: defaultRemoteType,
			SFTP: SFTP{
				Port:           defaultSFTPPort,
				KnownHostsPath: defaultKnownHostsPath,
				ConnectTimeout: defaultConnectTimeout,
			},
			S3: S3{
				Region: defaultS3Region,
			},
		},
		Library: Library{
			BaseDir:      defaultLibraryDir,
			MoviesDir:    defaultMoviesDir,
			ShowsDir:     defaultShowsDir,
			MusicDir:     defaultMusicDir,
			BooksDir:     defaultBooksDir,
			DownloadsDir: defaultDownloadsDir,
		},
		Categories: Categories{
			VideoExtensions:     cloneStrings(defaultVideoExtensions),
			AudioExtensions:     cloneStrings(defaultAudioExtensions),
			BookExtensions:      cloneStrings(defaultBookExtensions),
			CompanionExtensions: cloneStrings(defaultCompanionExtensions),
			MovieMinSizeGB:      defaultMovieMinSizeGB,
		},
		Sync: Sync{
			RetryAttempts:     defaultRetryAttempts,
			RetryDelaySeconds: defaultRetryDelaySeconds,
			Resume:            true,
		},
		Prune: Prune{
			DaysOld: defaultPruneDaysOld,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Sync:           true,
			Prune:          true,
			Bootstrap:      true,
			Errors:         true,
			SyncMinFiles:   defaultNotifySyncMinFiles,
		},
	}
}

func cloneStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
