package filelist

import (
	"encoding/xml"
	"time"

	"github.com/bs2609/fs2/internal/wire"
)

// xmlItem is the on-the-wire XML shape (spec §3.4 "legacy" rendering).
// Hash is hex-encoded; LastModified is RFC3339 so the rendering survives
// round-tripping through text editors, matching how the teacher renders
// timestamps in its own XML-adjacent rc/webgui surfaces.
type xmlItem struct {
	XMLName      xml.Name  `xml:"item"`
	Name         string    `xml:"name,attr"`
	Size         int64     `xml:"size,attr"`
	LastModified string    `xml:"modified,attr,omitempty"`
	HashVersion  uint8     `xml:"hashVersion,attr,omitempty"`
	Hash         string    `xml:"hash,attr,omitempty"`
	FileCount    int       `xml:"fileCount,attr"`
	Children     []xmlItem `xml:"item,omitempty"`
}

func toXMLItem(it Item) xmlItem {
	x := xmlItem{
		Name:      it.Name,
		Size:      it.Size,
		FileCount: it.FileCount,
	}
	if !it.IsDir() {
		x.LastModified = it.LastModified.UTC().Format(time.RFC3339Nano)
		x.HashVersion = uint8(it.HashVersion)
		x.Hash = it.Hash.String()
		return x
	}
	x.Children = make([]xmlItem, len(it.Children))
	for i, c := range it.Children {
		x.Children[i] = toXMLItem(c)
	}
	return x
}

func fromXMLItem(x xmlItem) (Item, error) {
	it := Item{Name: x.Name, Size: x.Size, FileCount: x.FileCount}
	if len(x.Children) > 0 || x.Hash == "" {
		it.Children = make([]Item, len(x.Children))
		for i, c := range x.Children {
			child, err := fromXMLItem(c)
			if err != nil {
				return Item{}, err
			}
			it.Children[i] = child
		}
		return it, nil
	}
	if x.LastModified != "" {
		t, err := time.Parse(time.RFC3339Nano, x.LastModified)
		if err != nil {
			return Item{}, err
		}
		it.LastModified = t
	}
	it.HashVersion = wire.HashVersion(x.HashVersion)
	h, err := wire.ParseHash(x.Hash)
	if err != nil {
		return Item{}, err
	}
	it.Hash = h
	return it, nil
}

// EncodeXML renders root (and its full subtree) as the legacy XML file
// list format.
func EncodeXML(root Item) ([]byte, error) {
	out, err := xml.MarshalIndent(toXMLItem(root), "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// DecodeXML parses an XML file list previously produced by EncodeXML.
func DecodeXML(data []byte) (Item, error) {
	var x xmlItem
	if err := xml.Unmarshal(data, &x); err != nil {
		return Item{}, err
	}
	return fromXMLItem(x)
}
