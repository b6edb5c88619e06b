// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devblok/koruframe/asset"
)

func currentUserName() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

var (
	author   = flag.String("author", currentUserName(), "Set the author of the package when compressing")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the given archive into the current directory")
	compress = flag.String("c", "", "Pack the compiled shaders of the given folder")
	list     = flag.String("l", "", "List the contents of the given archive")
	dstFile  = flag.String("f", "shaders.kar", "Destination file")
	silent   = flag.Bool("s", false, "Silent")
)

func main() {
	flag.Parse()
	if *silent {
		logrus.SetLevel(logrus.WarnLevel)
	}

	var ops int
	for _, op := range []string{*extract, *compress, *list} {
		if op != "" {
			ops++
		}
	}

	var err error
	switch {
	case ops > 1:
		err = errors.New("only one operation at a time")
	case *compress != "":
		err = compressShaders(*compress, *dstFile)
	case *extract != "":
		err = extractArchive(*extract)
	case *list != "":
		err = listArchive(*list)
	default:
		flag.PrintDefaults()
		return
	}
	if err != nil {
		logrus.Fatalf("%+v", err)
	}
}

func compressShaders(dir, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.Errorf("destination file %s exists, will not overwrite", dst)
	}

	shaders, err := asset.FindShaders(dir)
	if err != nil {
		return err
	}
	if len(shaders) == 0 {
		return errors.Errorf("no compiled shaders in %s", dir)
	}

	builder := asset.NewBuilder(asset.Header{
		Author:      *author,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	for _, shader := range shaders {
		if err := addFile(builder, shader); err != nil {
			return err
		}
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	written, err := builder.WriteTo(f)
	if err != nil {
		f.Close()
		os.Remove(dst)
		return errors.Wrapf(err, "write %s", dst)
	}
	logrus.WithFields(logrus.Fields{
		"file":    dst,
		"shaders": builder.Len(),
		"bytes":   written,
	}).Info("archive written")
	return f.Close()
}

func addFile(builder *asset.Builder, shader asset.ShaderFile) error {
	f, err := os.Open(shader.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	name := asset.ShaderFileName(shader.Name, shader.Type)
	logrus.WithField("shader", name).Debug("adding")
	return builder.Add(name, f)
}

func extractArchive(path string) error {
	archive, f, err := asset.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, name := range archive.Names() {
		data, err := archive.ReadAll(name)
		if err != nil {
			return err
		}
		out := filepath.Base(name)
		if err := os.WriteFile(out, data, 0644); err != nil {
			return err
		}
		logrus.WithField("file", out).Info("extracted")
	}
	return nil
}

func listArchive(path string) error {
	archive, f, err := asset.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := archive.Header()
	fmt.Printf("author %s, version %d, created %s\n", header.Author, header.Version, time.Unix(header.DateCreated, 0).Format(time.RFC3339))
	for _, e := range header.Index {
		fmt.Printf("%10d %10d %s\n", e.Size, e.CompressedSize, e.Name)
	}
	return nil
}
