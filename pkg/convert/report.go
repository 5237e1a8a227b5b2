package convert

import (
	"context"
	"sort"

	"github.com/ssargent/bagvrs/pkg/extract"
	"github.com/ssargent/bagvrs/pkg/timeutil"
)

// TopicReport describes one data topic of a log.
type TopicReport struct {
	Topic        string `json:"topic"`
	MessageType  string `json:"msgtype"`
	MessageCount int64  `json:"msgcount"`
	First        string `json:"first_message,omitempty"`
	Last         string `json:"last_message,omitempty"`
}

// Report summarizes the RealSense data topics of a log.
type Report struct {
	DurationSec   float64       `json:"duration_sec"`
	TopicCount    int           `json:"total_topics"`
	ImageTopics   []TopicReport `json:"image_topics"`
	IMUTopics     []TopicReport `json:"imu_topics"`
	ImageMessages int64         `json:"image_messages"`
	IMUMessages   int64         `json:"imu_messages"`
	DataMessages  int64         `json:"total_data_messages"`
}

// Describe builds the report of src. With timestamps every data message
// is read to find the first and last timestamp of each topic.
func Describe(ctx context.Context, src Source, timestamps bool) (*Report, error) {
	channels := src.Channels()
	r := &Report{
		DurationSec: src.Duration().Seconds(),
		TopicCount:  len(channels),
		ImageTopics: []TopicReport{},
		IMUTopics:   []TopicReport{},
	}

	index := make(map[string]*TopicReport)
	var topics []string
	for _, ch := range channels {
		tr := TopicReport{Topic: ch.Name, MessageType: ch.MessageType, MessageCount: ch.MessageCount}
		switch {
		case extract.IsImageTopic(ch.Name):
			r.ImageTopics = append(r.ImageTopics, tr)
			r.ImageMessages += ch.MessageCount
		case extract.IsIMUTopic(ch.Name):
			r.IMUTopics = append(r.IMUTopics, tr)
			r.IMUMessages += ch.MessageCount
		default:
			continue
		}
		topics = append(topics, ch.Name)
	}
	r.DataMessages = r.ImageMessages + r.IMUMessages
	sort.Slice(r.ImageTopics, func(i, j int) bool { return r.ImageTopics[i].Topic < r.ImageTopics[j].Topic })
	sort.Slice(r.IMUTopics, func(i, j int) bool { return r.IMUTopics[i].Topic < r.IMUTopics[j].Topic })

	if !timestamps || len(topics) == 0 {
		return r, nil
	}

	for i := range r.ImageTopics {
		index[r.ImageTopics[i].Topic] = &r.ImageTopics[i]
	}
	for i := range r.IMUTopics {
		index[r.IMUTopics[i].Topic] = &r.IMUTopics[i]
	}

	it := src.Messages(topics...)
	defer it.Close()
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m := it.Message()
		tr := index[m.Channel]
		iso := timeutil.FormatISO(timeutil.ToTime(m.TimestampNS))
		if tr.First == "" {
			tr.First = iso
		}
		tr.Last = iso
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return r, nil
}
