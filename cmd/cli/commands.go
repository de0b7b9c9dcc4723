package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/himanishpuri/quadracalc/internal/clocksync"
	"github.com/himanishpuri/quadracalc/internal/metronome"
	"github.com/himanishpuri/quadracalc/internal/midiclock"
	"github.com/himanishpuri/quadracalc/internal/subdivision"
	"github.com/himanishpuri/quadracalc/pkg/quadracalc"
	"github.com/himanishpuri/quadracalc/pkg/utils"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD700"))
	nameStyle     = lipgloss.NewStyle().Width(28).Align(lipgloss.Left)
	noteStyle     = lipgloss.NewStyle().Width(12).Foreground(lipgloss.Color("#666666"))
	valueStyle    = lipgloss.NewStyle().Width(14).Align(lipgloss.Right)
)

func argInt(c *cli.Command, i int, what string) (int, error) {
	raw := c.Args().Get(i)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, cli.Exit(fmt.Sprintf("%s must be an integer, got %q", what, raw), 1)
	}
	return v, nil
}

// warnUnsaved prints a tempo-not-saved warning and clears it. Any other
// error is returned unchanged.
func warnUnsaved(err error) error {
	if quadracalc.IsTempoNotSaved(err) {
		fmt.Fprintln(os.Stderr, "⚠️  "+quadracalc.UserMessage(err))
		return nil
	}
	return err
}

func calcCommand() *cli.Command {
	return &cli.Command{
		Name:      "calc",
		Usage:     "show delay times for a tempo",
		ArgsUsage: "[bpm]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "unit", Usage: "ms, seconds, samples or hz (default: saved setting)"},
			&cli.IntFlag{Name: "rate", Usage: "sample rate for the samples unit (default: saved setting)"},
			&cli.BoolFlag{Name: "raw", Usage: "print bare values without units"},
			&cli.BoolFlag{Name: "set", Usage: "also make bpm the current tempo"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			svc, err := openService(c)
			if err != nil {
				return err
			}
			defer svc.Close()

			bpm := svc.CurrentBPM()
			if c.NArg() > 0 {
				if bpm, err = argInt(c, 0, "bpm"); err != nil {
					return err
				}
			}
			if c.Bool("set") {
				if err := warnUnsaved(svc.SetBPM(bpm)); err != nil {
					return err
				}
			}

			f := svc.Formatter()
			if u := c.String("unit"); u != "" {
				if f.Unit, err = subdivision.ParseUnit(u); err != nil {
					return cli.Exit(err.Error(), 1)
				}
			}
			if r := c.Int("rate"); r != 0 {
				if !subdivision.ValidSampleRate(r) {
					return cli.Exit(fmt.Sprintf("unsupported sample rate %d", r), 1)
				}
				f.SampleRate = r
			}

			groups, err := svc.DelaysFor(bpm)
			if err != nil {
				return err
			}
			printDelays(bpm, groups, f, c.Bool("raw"))
			return nil
		},
	}
}

func printDelays(bpm int, groups []subdivision.Group, f subdivision.Formatter, raw bool) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("♩ = %d BPM", bpm)))
	for _, g := range groups {
		fmt.Println()
		fmt.Println(categoryStyle.Render(string(g.Category)))
		for _, d := range g.Delays {
			value := f.Format(d.Ms)
			if raw {
				value = f.RawValue(d.Ms)
			}
			fmt.Println(nameStyle.Render(d.Name) + noteStyle.Render(d.Note) + valueStyle.Render(value))
		}
	}
}

func bpmCommand() *cli.Command {
	return &cli.Command{
		Name:      "bpm",
		Usage:     "show or change the current tempo",
		ArgsUsage: "[bpm]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "nudge", Usage: "add to the tempo (clamped to 30-300)"},
			&cli.BoolFlag{Name: "halve", Usage: "halve the tempo (60 BPM or more)"},
			&cli.BoolFlag{Name: "double", Usage: "double the tempo (150 BPM or less)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			svc, err := openService(c)
			if err != nil {
				return err
			}
			defer svc.Close()

			switch {
			case c.NArg() > 0:
				bpm, err := argInt(c, 0, "bpm")
				if err != nil {
					return err
				}
				if err := warnUnsaved(svc.SetBPM(bpm)); err != nil {
					return err
				}
			case c.Int("nudge") != 0:
				if _, err := svc.NudgeBPM(c.Int("nudge")); warnUnsaved(err) != nil {
					return err
				}
			case c.Bool("halve"):
				if _, err := svc.HalveBPM(); warnUnsaved(err) != nil {
					return err
				}
			case c.Bool("double"):
				if _, err := svc.DoubleBPM(); warnUnsaved(err) != nil {
					return err
				}
			}
			fmt.Printf("%d BPM\n", svc.CurrentBPM())
			return nil
		},
	}
}

func tapCommand() *cli.Command {
	return &cli.Command{
		Name:  "tap",
		Usage: "tap a tempo in the terminal",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max-taps", Value: 12, Usage: "taps kept in the estimation window"},
			&cli.DurationFlag{Name: "quiet", Value: 2 * time.Second, Usage: "finalize after this long without a tap"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			finals := make(chan tapFinalMsg, 4)
			svc, err := openService(c,
				quadracalc.WithMaxTaps(c.Int("max-taps")),
				quadracalc.WithQuietPeriod(c.Duration("quiet")),
				quadracalc.WithTapListener(forwardTaps(finals)),
			)
			if err != nil {
				return err
			}
			defer svc.Close()

			bpm, err := runTapUI(ctx, svc, finals)
			if err != nil {
				return err
			}
			fmt.Printf("✅ %d BPM\n", bpm)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "set the tempo from incoming MIDI clock",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "MIDI input port name (default: first port)"},
			&cli.DurationFlag{Name: "timeout", Value: clocksync.DefaultTimeout, Usage: "give up after this long without clock"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			svc, err := openService(c, quadracalc.WithClockTimeout(c.Duration("timeout")))
			if err != nil {
				return err
			}
			defer svc.Close()

			src := midiclock.NewSource(midiclock.WithPort(c.String("port")))
			fmt.Println("🎹 Waiting for MIDI clock... (start playback on the sending device)")
			res, err := svc.SyncClock(ctx, src, func(preview, pulses int) {
				if preview > 0 {
					fmt.Printf("\r   %3d pulses  ~%d BPM ", pulses, preview)
				} else {
					fmt.Printf("\r   %3d pulses        ", pulses)
				}
			})
			fmt.Println()
			if err := warnUnsaved(err); err != nil {
				return err
			}

			fmt.Printf("✅ Synced to %d BPM (%.2f exact, %d pulses", res.BPM, res.Exact, res.Pulses)
			if !res.Stable {
				fmt.Print(", clock was drifting")
			}
			fmt.Println(")")
			return nil
		},
	}
}

func portsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ports",
		Usage: "list MIDI input ports",
		Action: func(ctx context.Context, c *cli.Command) error {
			ports, err := midiclock.Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Println("📭 No MIDI inputs found")
				return nil
			}
			for i, p := range ports {
				fmt.Printf("%d. %s\n", i+1, p)
			}
			return nil
		},
	}
}

func presetCommand() *cli.Command {
	return &cli.Command{
		Name:  "preset",
		Usage: "save, list, load and delete presets",
		Commands: []*cli.Command{
			{
				Name:      "save",
				Usage:     "save the current tempo and settings",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, c *cli.Command) error {
					svc, err := openService(c)
					if err != nil {
						return err
					}
					defer svc.Close()

					p, err := svc.SavePreset(strings.Join(c.Args().Slice(), " "))
					if err != nil {
						return err
					}
					fmt.Printf("✅ Saved preset %q at %d BPM (%s)\n", p.Name, p.BPM, p.ID)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "list saved presets",
				Action: func(ctx context.Context, c *cli.Command) error {
					svc, err := openService(c)
					if err != nil {
						return err
					}
					defer svc.Close()

					presets := svc.Presets()
					if len(presets) == 0 {
						fmt.Println("📭 No presets saved")
						return nil
					}
					for i, p := range presets {
						saved := humanize.Time(time.UnixMilli(p.Timestamp))
						fmt.Printf("%d. %s  %d BPM  %d Hz  %s  (%s)\n", i+1, p.Name, p.BPM, p.SampleRate, p.DisplayMode, saved)
						if len(p.CustomSubdivisions) > 0 {
							fmt.Printf("   %d custom subdivision(s)\n", len(p.CustomSubdivisions))
						}
					}
					return nil
				},
			},
			{
				Name:      "load",
				Usage:     "apply a preset by id or name",
				ArgsUsage: "<id|name>",
				Action: func(ctx context.Context, c *cli.Command) error {
					svc, err := openService(c)
					if err != nil {
						return err
					}
					defer svc.Close()

					p, err := svc.LoadPreset(strings.Join(c.Args().Slice(), " "))
					if err := warnUnsaved(err); err != nil {
						return err
					}
					fmt.Printf("✅ Loaded %q: %d BPM\n", p.Name, p.BPM)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a preset by id or name",
				ArgsUsage: "<id|name>",
				Action: func(ctx context.Context, c *cli.Command) error {
					svc, err := openService(c)
					if err != nil {
						return err
					}
					defer svc.Close()

					ref := strings.Join(c.Args().Slice(), " ")
					if err := svc.DeletePreset(ref); err != nil {
						return err
					}
					fmt.Printf("✅ Deleted preset %q\n", ref)
					return nil
				},
			},
		},
	}
}

func subdivisionCommand() *cli.Command {
	return &cli.Command{
		Name:    "subdivision",
		Aliases: []string{"sub"},
		Usage:   "manage custom subdivisions",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "add a custom subdivision (factor in beats, at most 10)",
				ArgsUsage: "<name> <factor>",
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.NArg() < 2 {
						return cli.Exit("usage: quadracalc subdivision add <name> <factor>", 1)
					}
					args := c.Args().Slice()
					factor, err := strconv.ParseFloat(args[len(args)-1], 64)
					if err != nil {
						return cli.Exit(fmt.Sprintf("factor must be a number, got %q", args[len(args)-1]), 1)
					}

					svc, err := openService(c)
					if err != nil {
						return err
					}
					defer svc.Close()

					sub, err := svc.AddSubdivision(strings.Join(args[:len(args)-1], " "), factor)
					if err != nil {
						return err
					}
					ms, _ := svc.DelayFor(svc.CurrentBPM(), sub.Factor)
					fmt.Printf("✅ Added %q (x%g = %s at %d BPM)\n", sub.Name, sub.Factor, svc.Format(ms), svc.CurrentBPM())
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "list custom subdivisions",
				Action: func(ctx context.Context, c *cli.Command) error {
					svc, err := openService(c)
					if err != nil {
						return err
					}
					defer svc.Close()

					subs := svc.Subdivisions()
					if len(subs) == 0 {
						fmt.Println("📭 No custom subdivisions")
						return nil
					}
					for i, s := range subs {
						fmt.Printf("%d. %s  x%g\n", i+1, s.Name, s.Factor)
					}
					return nil
				},
			},
			{
				Name:      "remove",
				Usage:     "remove a custom subdivision",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, c *cli.Command) error {
					svc, err := openService(c)
					if err != nil {
						return err
					}
					defer svc.Close()

					name := strings.Join(c.Args().Slice(), " ")
					if err := svc.RemoveSubdivision(name); err != nil {
						return err
					}
					fmt.Printf("✅ Removed %q\n", name)
					return nil
				},
			},
		},
	}
}

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "show or change display settings",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "rate", Usage: "sample rate: 44100, 48000, 88200, 96000 or 192000"},
			&cli.StringFlag{Name: "unit", Usage: "display unit: ms, seconds, samples or hz"},
			&cli.BoolFlag{Name: "haptic", Usage: "enable haptic feedback in the web app"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			svc, err := openService(c)
			if err != nil {
				return err
			}
			defer svc.Close()

			var u quadracalc.SettingsUpdate
			if c.IsSet("rate") {
				rate := c.Int("rate")
				u.SampleRate = &rate
			}
			if c.IsSet("unit") {
				unit := c.String("unit")
				u.DisplayMode = &unit
			}
			if c.IsSet("haptic") {
				haptic := c.Bool("haptic")
				u.HapticEnabled = &haptic
			}

			st, err := svc.UpdateSettings(u)
			if err != nil {
				return err
			}
			fmt.Printf("Tempo:        %d BPM\n", svc.CurrentBPM())
			fmt.Printf("Sample rate:  %s Hz\n", humanize.Comma(int64(st.SampleRate)))
			fmt.Printf("Display unit: %s\n", st.DisplayMode)
			fmt.Printf("Haptics:      %v\n", st.HapticEnabled)
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "show recently used tempos",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "forget the history"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			svc, err := openService(c)
			if err != nil {
				return err
			}
			defer svc.Close()

			if c.Bool("clear") {
				if err := svc.ClearHistory(); err != nil {
					return err
				}
				fmt.Println("✅ History cleared")
				return nil
			}

			history := svc.History()
			if len(history) == 0 {
				fmt.Println("📭 No tempo history")
				return nil
			}
			for _, h := range history {
				fmt.Printf("%3d BPM  %s\n", h.BPM, humanize.Time(time.UnixMilli(h.Time)))
			}
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "export delay times as JSON or text",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default: quadra-calc-<bpm>bpm.json, - for stdout)"},
			&cli.BoolFlag{Name: "share", Usage: "print the short share text instead"},
			&cli.BoolFlag{Name: "text", Usage: "print every delay as text instead"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			svc, err := openService(c)
			if err != nil {
				return err
			}
			defer svc.Close()

			switch {
			case c.Bool("share"):
				fmt.Println(svc.ShareText())
				return nil
			case c.Bool("text"):
				text, err := svc.CopyAllText()
				if err != nil {
					return err
				}
				fmt.Println(text)
				return nil
			}

			data, err := svc.ExportJSON()
			if err != nil {
				return err
			}
			out := c.String("out")
			if out == "-" {
				_, err := os.Stdout.Write(append(data, '\n'))
				return err
			}
			if out == "" {
				out = svc.ExportFilename()
			}
			if err := utils.WriteFileAtomic(out, data); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Printf("✅ Exported to %s (%s)\n", out, humanize.Bytes(uint64(len(data))))
			return nil
		},
	}
}

func clicktrackCommand() *cli.Command {
	return &cli.Command{
		Name:  "clicktrack",
		Usage: "render a metronome click as WAV or MIDI",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "bpm", Usage: "tempo (default: current tempo)"},
			&cli.IntFlag{Name: "bars", Value: 4, Usage: "number of bars"},
			&cli.IntFlag{Name: "beats", Value: metronome.DefaultBeatsPerBar, Usage: "beats per bar"},
			&cli.IntFlag{Name: "rate", Usage: "WAV sample rate (default: saved setting)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file; .mid or .midi writes MIDI, anything else WAV"},
			&cli.BoolFlag{Name: "verify", Usage: "read a WAV back and check every click"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			svc, err := openService(c)
			if err != nil {
				return err
			}
			defer svc.Close()

			track := metronome.ClickTrack{
				BPM:         svc.CurrentBPM(),
				Bars:        c.Int("bars"),
				BeatsPerBar: c.Int("beats"),
				SampleRate:  svc.Settings().SampleRate,
			}
			if c.IsSet("bpm") {
				track.BPM = c.Int("bpm")
			}
			if c.IsSet("rate") {
				track.SampleRate = c.Int("rate")
			}

			out := c.String("out")
			if out == "" {
				out = fmt.Sprintf("click-%dbpm.wav", track.BPM)
			}
			if err := utils.EnsureParentDir(out); err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()

			isMIDI := false
			switch strings.ToLower(filepath.Ext(out)) {
			case ".mid", ".midi":
				isMIDI = true
				err = metronome.WriteSMF(f, track)
			default:
				var samples []float64
				if samples, err = metronome.RenderClicks(track); err == nil {
					err = metronome.WriteWAV(f, samples, track.SampleRate)
				}
			}
			if err != nil {
				os.Remove(out)
				return cli.Exit(err.Error(), 1)
			}
			fmt.Printf("✅ Wrote %d bars at %d BPM to %s\n", track.Bars, track.BPM, out)

			if c.Bool("verify") && !isMIDI {
				if _, err := f.Seek(0, io.SeekStart); err != nil {
					return err
				}
				if err := metronome.VerifyWAV(f, track); err != nil {
					return cli.Exit("verification failed: "+err.Error(), 1)
				}
				fmt.Printf("✅ Verified %d clicks\n", track.Beats())
			}
			return nil
		},
	}
}
