// Command codegen renders a graph document (a scenario or visual script
// exported by the editor) as Python, C# or C++ scaffolding.
//
//	codegen -lang csharp -out Lobby.cs lobby.json
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AaronLay10/SentientStudio/internal/codegen"
	"github.com/AaronLay10/SentientStudio/internal/logging"
	"github.com/AaronLay10/SentientStudio/internal/scenario"
	"github.com/AaronLay10/SentientStudio/internal/store"
)

func main() {
	lang := flag.String("lang", "python", "target language: python, csharp or cpp")
	out := flag.String("out", "", "write code to this file instead of stdout")
	check := flag.Bool("check", false, "run the syntax check on the generated code")
	validate := flag.Bool("validate", true, "refuse scenarios that fail graph validation")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] document.json\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log, closer, err := logging.New("studio-codegen", logging.Config{Output: "stdout", Format: "text"})
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}
	defer closer.Close()
	// generated code goes to stdout, so keep diagnostics on stderr
	log.Logger.SetOutput(os.Stderr)

	if err := run(context.Background(), flag.Arg(0), codegen.Language(*lang), *out, *check, *validate, log); err != nil {
		log.WithError(err).Error("generation failed")
		closer.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, lang codegen.Language, out string, check, validate bool, log *logrus.Entry) error {
	doc, err := scenario.LoadDocument(path)
	if err != nil {
		return err
	}

	st := store.NewMemory()
	svc := codegen.NewService(st, codegen.ServiceConfig{DefaultLanguage: lang})
	svc.SetEmitter(nil)

	var res codegen.Result
	switch {
	case doc.Scenario != nil:
		sc := doc.Scenario
		if sc.ID == "" {
			sc.ID = uuid.NewString()
		}
		if validate {
			if ok, errs := scenario.Validate(sc); !ok {
				for _, e := range errs {
					log.WithField("scenario", sc.Name).Warn(e)
				}
				return fmt.Errorf("scenario %q is not valid (%d problems)", sc.Name, len(errs))
			}
		}
		if err := st.PutScenario(ctx, sc); err != nil {
			return err
		}
		res = svc.GenerateFromScenario(ctx, sc.ID, lang)
	default:
		v := doc.VisualScript
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		if validate {
			if errs := scenario.ValidateScript(v); len(errs) > 0 {
				for _, e := range errs {
					log.WithField("visual_script", v.Name).Warn(e)
				}
				return fmt.Errorf("visual script %q is not valid (%d problems)", v.Name, len(errs))
			}
		}
		if err := st.PutVisualScript(ctx, v); err != nil {
			return err
		}
		res = svc.GenerateFromVisualScript(ctx, v.ID, lang)
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}

	if check {
		c := svc.ValidateSyntax(res.Code, res.Language)
		if !c.Valid {
			return fmt.Errorf("generated %s failed the syntax check: %s", res.Language, c.Message)
		}
	}

	if out == "" {
		_, err := fmt.Fprint(os.Stdout, res.Code)
		return err
	}
	if err := os.WriteFile(out, []byte(res.Code), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	log.WithFields(logrus.Fields{
		"source":   res.SourceName,
		"language": res.Language,
		"file":     out,
	}).Info("code written")
	return nil
}
