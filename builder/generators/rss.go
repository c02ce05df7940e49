package generators

import (
	"encoding/xml"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/models"
	"github.com/bengal-ssg/bengal/builder/templates"
)

// rssItemLimit caps the feed length.
const rssItemLimit = 20

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
	GUID        string `xml:"guid"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

// WriteRSS emits rss.xml with the newest pages first.
func WriteRSS(fs afero.Fs, site *config.SiteData, bc *models.BuildContext, now time.Time) error {
	cfg := site.Config.Site
	channel := rssChannel{
		Title:         cfg.Title,
		Link:          cfg.BaseURL,
		Description:   cfg.Description,
		Language:      cfg.Language,
		LastBuildDate: now.UTC().Format(time.RFC1123Z),
	}

	for _, page := range recentFirst(bc) {
		if len(channel.Items) >= rssItemLimit {
			break
		}
		link := templates.NormalizeURL(templates.ApplyBaseURL(cfg.BaseURL, page.URL(site.OutputDir)))
		item := rssItem{
			Title:       page.Title,
			Link:        link,
			Description: page.Description,
			GUID:        link,
		}
		if page.HasDate {
			item.PubDate = page.Date.UTC().Format(time.RFC1123Z)
		}
		channel.Items = append(channel.Items, item)
	}

	data, err := xml.MarshalIndent(rssFeed{Version: "2.0", Channel: channel}, "", "  ")
	if err != nil {
		return err
	}
	payload := append([]byte(xml.Header), data...)
	payload = append(payload, '\n')
	return atomicio.WriteBytes(fs, filepath.Join(site.OutputDir, "rss.xml"), payload)
}
