package value_test

import (
	"fmt"

	"github.com/ssargent/bagvrs/pkg/value"
)

func ExampleMap() {
	cfg := value.NewMap().
		Set("sensor_type", value.String("accelerometer")).
		Set("sample_rate", value.MustFloat(44.0)).
		Set("axes", value.Seq(value.String("x"), value.String("y"), value.String("z"))).
		Set("range", value.Null())

	fmt.Println(cfg)
	// Output: {"sensor_type":"accelerometer","sample_rate":44,"axes":["x","y","z"],"range":null}
}

func ExampleParseJSON() {
	cfg, err := value.ParseJSON([]byte(`{"fps": 30, "encoding": "rgb8"}`))
	if err != nil {
		fmt.Println(err)
		return
	}
	fps, _ := cfg.Get("fps")
	fmt.Println(cfg.Keys(), fps)
	// Output: [fps encoding] 30
}
