package main

import (
	"encoding/json"
	"fmt"
	"io"
	"lyrifind-api/config"
	"lyrifind-api/services/lrclib"
	"lyrifind-api/services/songs"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	baseURL string
	timeout time.Duration
	jsonOut bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	conf := config.Get()
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "lyrifind",
		Short:        "find songs and lyrics on lrclib",
		Long:         `search lrclib.net for songs and print display-ready lyrics.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
			log.SetOutput(cmd.ErrOrStderr())
			if opts.verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.ErrorLevel)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", conf.Upstream.BaseURL, "lrclib api base url")
	flags.DurationVar(&opts.timeout, "timeout", conf.UpstreamTimeout(), "request timeout")
	flags.BoolVar(&opts.jsonOut, "json", false, "print json instead of text")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log requests and fallbacks to stderr")

	root.AddCommand(
		newSearchCmd(opts),
		newLyricsCmd(opts),
		newFindCmd(opts),
	)
	return root
}

func (o *rootOptions) service() *songs.Service {
	client := lrclib.New(lrclib.Options{
		BaseURL:   o.baseURL,
		UserAgent: config.Get().Upstream.UserAgent,
		Timeout:   o.timeout,
	})
	return songs.NewService(client)
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query...>",
		Short: "list candidate songs for a query",
		Long:  `search lrclib for a free-text query such as "Shape of You by Ed Sheeran".`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found := opts.service().Search(cmd.Context(), strings.Join(args, " "))

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, found)
			}
			if len(found) == 0 {
				fmt.Fprintln(out, "no songs found")
				return nil
			}
			for i, song := range found {
				fmt.Fprintf(out, "%2d. %s - %s  [%s]\n", i+1, song.Artist, song.Title, song.ID)
			}
			return nil
		},
	}
}

func newLyricsCmd(opts *rootOptions) *cobra.Command {
	var title, artist, id string

	cmd := &cobra.Command{
		Use:   "lyrics",
		Short: "print lyrics for one song",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			title, artist = strings.TrimSpace(title), strings.TrimSpace(artist)
			if title == "" && artist == "" {
				return fmt.Errorf("--title or --artist is required")
			}
			if id == "" {
				id = songs.SanitizeID(artist + "_" + title)
			}

			lyrics := opts.service().Lyrics(cmd.Context(), songs.Song{ID: id, Title: title, Artist: artist})
			return printLyrics(cmd.OutOrStdout(), opts.jsonOut, lyrics)
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "song title")
	cmd.Flags().StringVarP(&artist, "artist", "a", "", "artist name")
	cmd.Flags().StringVar(&id, "id", "", "song id to echo back (defaults to a slug)")
	return cmd
}

func newFindCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <query...>",
		Short: "print lyrics for the best match of a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			song, lyrics, ok := opts.service().Find(cmd.Context(), query)
			if !ok {
				return fmt.Errorf("no songs found for %q", query)
			}

			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"song":   song,
					"lyrics": lyrics,
				})
			}
			return printLyrics(cmd.OutOrStdout(), false, lyrics)
		},
	}
}

func printLyrics(out io.Writer, asJSON bool, lyrics songs.Lyrics) error {
	if asJSON {
		return writeJSON(out, lyrics)
	}

	header := lyrics.Title
	if lyrics.Artist != "" {
		header = lyrics.Artist + " - " + lyrics.Title
	}
	fmt.Fprintf(out, "%s\n%s\n\n%s\n", header, strings.Repeat("-", len([]rune(header))), lyrics.Text)
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
