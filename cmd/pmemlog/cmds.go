package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/kjk/pmemlog/archive"
	"github.com/kjk/pmemlog/pmemlog"
	"github.com/kjk/pmemlog/recordlog"
	"github.com/tidwall/pretty"
)

const defaultPoolSize = 8 * 1024 * 1024

func newFlagSet(name string, w io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(w)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, nArgs int) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if nArgs >= 0 && fs.NArg() != nArgs {
		return fmt.Errorf("%s: expected %d arguments, got %d", fs.Name(), nArgs, fs.NArg())
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	d, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(d))
	return err
}

func cmdCreate(args []string, w io.Writer) error {
	fs := newFlagSet("create", w)
	size := fs.Int64("size", defaultPoolSize, "capacity in bytes")
	perm := fs.String("perm", "0666", "file permissions, octal")
	if err := parseFlags(fs, args, 1); err != nil {
		return err
	}
	mode, err := strconv.ParseUint(*perm, 8, 32)
	if err != nil {
		return fmt.Errorf("invalid -perm '%s': %w", *perm, err)
	}
	p, err := pmemlog.Create(fs.Arg(0), *size, os.FileMode(mode), nil)
	if err != nil {
		return err
	}
	st := p.Stat()
	if err = p.Close(); err != nil {
		return err
	}
	return writeJSON(w, st)
}

func cmdInfo(args []string, w io.Writer) error {
	fs := newFlagSet("info", w)
	dump := fs.Bool("dump", false, "also dump the beginning of data")
	if err := parseFlags(fs, args, 1); err != nil {
		return err
	}
	path := fs.Arg(0)
	st, err := pmemlog.Check(path)
	if err != nil {
		return err
	}
	if err = writeJSON(w, st); err != nil {
		return err
	}
	if !*dump {
		return nil
	}
	p, err := pmemlog.Open(path, &pmemlog.Options{Backend: pmemlog.BackendFile})
	if err != nil {
		return err
	}
	defer p.Close()
	d, err := p.Read(0, min(p.Tail(), 256))
	if err != nil {
		return err
	}
	spew.Fdump(w, d)
	return nil
}

func cmdCheck(args []string, w io.Writer) error {
	fs := newFlagSet("check", w)
	if err := parseFlags(fs, args, -1); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("check: need at least one pool")
	}
	nFailed := 0
	for _, path := range fs.Args() {
		st, err := pmemlog.Check(path)
		if err != nil {
			fmt.Fprintf(w, "FAIL %s: %s\n", path, err)
			nFailed++
			continue
		}
		fmt.Fprintf(w, "ok   %s: tail %d of %d\n", path, st.Tail, st.Capacity)
	}
	if nFailed > 0 {
		return fmt.Errorf("%d of %d pools failed the check", nFailed, fs.NArg())
	}
	return nil
}

func cmdCat(args []string, w io.Writer) error {
	fs := newFlagSet("cat", w)
	framed := fs.Bool("framed", false, "pool holds framed records, print one per line")
	off := fs.Int64("offset", 0, "start offset")
	n := fs.Int64("n", -1, "number of bytes, or records with -framed; -1 means up to the tail")
	if err := parseFlags(fs, args, 1); err != nil {
		return err
	}
	p, err := pmemlog.Open(fs.Arg(0), nil)
	if err != nil {
		return err
	}
	defer p.Close()

	if *framed {
		nLeft := *n
		recs, errFn := recordlog.Records(p)
		for rec := range recs {
			if nLeft == 0 {
				break
			}
			if rec.Offset < *off {
				continue
			}
			fmt.Fprintf(w, "%d\t%s\n", rec.Offset, rec.Data)
			nLeft--
		}
		return errFn()
	}
	size := *n
	if size < 0 {
		size = p.Tail() - *off
	}
	d, err := p.Read(*off, size)
	if err != nil {
		return err
	}
	_, err = w.Write(d)
	return err
}

func cmdAppend(args []string, w io.Writer) error {
	fs := newFlagSet("append", w)
	framed := fs.Bool("framed", false, "frame each record with length and checksum")
	if err := parseFlags(fs, args, -1); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("append: need a pool and at least one record")
	}
	p, err := pmemlog.Open(fs.Arg(0), nil)
	if err != nil {
		return err
	}
	for _, s := range fs.Args()[1:] {
		var off int64
		if *framed {
			off, err = recordlog.Append(p, []byte(s))
		} else {
			off, err = p.Append([]byte(s))
		}
		if err != nil {
			p.Close()
			return err
		}
		fmt.Fprintf(w, "%d\n", off)
	}
	return p.Close()
}

func cmdExport(args []string, w io.Writer) error {
	fs := newFlagSet("export", w)
	if err := parseFlags(fs, args, 2); err != nil {
		return err
	}
	p, err := pmemlog.Open(fs.Arg(0), nil)
	if err != nil {
		return err
	}
	defer p.Close()
	info, err := archive.ExportFile(p, fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "exported %d bytes to '%s'\n", info.Size, fs.Arg(1))
	return nil
}

func cmdRestore(args []string, w io.Writer) error {
	fs := newFlagSet("restore", w)
	size := fs.Int64("size", 0, "capacity of the new pool, 0 means same as exported pool")
	if err := parseFlags(fs, args, 2); err != nil {
		return err
	}
	p, err := archive.RestoreFile(fs.Arg(1), *size, fs.Arg(0), nil)
	if err != nil {
		return err
	}
	st := p.Stat()
	if err = p.Close(); err != nil {
		return err
	}
	return writeJSON(w, st)
}

func envOr(name string, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func cmdUploadS3(args []string, w io.Writer) error {
	fs := newFlagSet("upload-s3", w)
	c := &archive.S3Config{}
	fs.StringVar(&c.Access, "access", envOr("PMEMLOG_S3_ACCESS", ""), "access key, default $PMEMLOG_S3_ACCESS")
	fs.StringVar(&c.Secret, "secret", envOr("PMEMLOG_S3_SECRET", ""), "secret key, default $PMEMLOG_S3_SECRET")
	fs.StringVar(&c.Bucket, "bucket", envOr("PMEMLOG_S3_BUCKET", ""), "bucket")
	fs.StringVar(&c.Endpoint, "endpoint", envOr("PMEMLOG_S3_ENDPOINT", ""), "endpoint e.g. s3.amazonaws.com")
	fs.StringVar(&c.Region, "region", "", "region")
	fs.BoolVar(&c.Insecure, "insecure", false, "use http")
	if err := parseFlags(fs, args, 2); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	info, err := archive.UploadS3(ctx, c, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "uploaded '%s' as '%s', %d bytes\n", fs.Arg(0), info.Key, info.Size)
	return nil
}

func cmdUploadSFTP(args []string, w io.Writer) error {
	fs := newFlagSet("upload-sftp", w)
	c := &archive.SFTPConfig{}
	fs.StringVar(&c.User, "user", "root", "ssh user")
	fs.StringVar(&c.Host, "host", "", "ssh server")
	fs.StringVar(&c.PrivateKeyPath, "key", "", "path of private key")
	fs.StringVar(&c.Passphrase, "passphrase", envOr("PMEMLOG_SSH_PASSPHRASE", ""), "key passphrase, default $PMEMLOG_SSH_PASSPHRASE")
	if err := parseFlags(fs, args, 2); err != nil {
		return err
	}
	if err := archive.UploadSFTP(c, fs.Arg(0), fs.Arg(1)); err != nil {
		return err
	}
	fmt.Fprintf(w, "uploaded '%s' to %s:%s\n", fs.Arg(0), c.Host, fs.Arg(1))
	return nil
}
