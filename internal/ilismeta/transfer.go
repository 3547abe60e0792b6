package ilismeta

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

const (
	interlis23Namespace = "http://www.interlis.ch/INTERLIS2.3"
	transferSender      = "qgis-interlis-plugin"
)

// GenEmptyTransfer renders an INTERLIS 2.3 transfer with a header listing
// every model of the graph and an empty data section.
func GenEmptyTransfer(g *domain.ModelGraph) (string, error) {
	if g.IsEmpty() {
		return "", &domain.EmptyModelError{Source: g.Source}
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	transfer := doc.CreateElement("TRANSFER")
	transfer.CreateAttr("xmlns", interlis23Namespace)

	header := transfer.CreateElement("HEADERSECTION")
	header.CreateAttr("SENDER", transferSender)
	header.CreateAttr("VERSION", "2.3")
	models := header.CreateElement("MODELS")
	for _, m := range g.Models {
		el := models.CreateElement("MODEL")
		el.CreateAttr("NAME", m.Name)
		if m.Version != "" {
			el.CreateAttr("VERSION", m.Version)
		}
		if m.URI != "" {
			el.CreateAttr("URI", m.URI)
		}
	}
	transfer.CreateElement("DATASECTION")

	doc.Indent(2)
	doc.WriteSettings.CanonicalEndTags = true
	doc.WriteSettings.CanonicalAttrVal = true
	out, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("writing empty transfer: %w", err)
	}
	return out, nil
}

// GenEmptyTransferFile writes an empty transfer to a new temporary file in
// dir and returns its path. The caller removes the file.
func GenEmptyTransferFile(g *domain.ModelGraph, dir string) (string, error) {
	content, err := GenEmptyTransfer(g)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, "empty_*.xtf")
	if err != nil {
		return "", fmt.Errorf("creating transfer file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing transfer file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing transfer file: %w", err)
	}
	return f.Name(), nil
}

// DetectModel returns the first model named in the header of a transfer
// file. INTERLIS 1 files are read up to their MODL line.
func DetectModel(transferPath string) (string, error) {
	f, err := os.Open(transferPath)
	if err != nil {
		return "", fmt.Errorf("opening transfer: %w", err)
	}
	defer f.Close()

	var name string
	if strings.EqualFold(filepath.Ext(transferPath), ".itf") {
		name, err = detectITFModel(f)
	} else {
		name, err = detectXTFModel(f)
	}
	if err != nil {
		return "", &domain.ModelParseError{Source: transferPath, Reason: "cannot read transfer header", Err: err}
	}
	if name == "" {
		return "", &domain.ModelParseError{Source: transferPath, Reason: "no model in transfer header"}
	}
	return name, nil
}

// detectXTFModel streams tokens up to the first MODEL element so that only
// the header of a large transfer is read.
func detectXTFModel(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "MODEL":
			for _, a := range start.Attr {
				if a.Name.Local == "NAME" {
					return a.Value, nil
				}
			}
		case "DATASECTION":
			return "", nil
		}
	}
}

func detectITFModel(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "MODL":
			if len(fields) > 1 {
				return fields[1], nil
			}
		case "TOPI", "ETAB":
			return "", nil
		}
	}
	return "", scanner.Err()
}
