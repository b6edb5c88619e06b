// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/devblok/koruframe/gfx/vkr"
)

var debug = flag.Bool("vkdbg", false, "Load Vulkan validation layers")

func main() {
	flag.Parse()

	instance, err := vkr.NewInstance(vkr.DefaultApplicationInfo, nil, vkr.InstanceConfiguration{
		DebugMode: *debug,
	})
	if err != nil {
		logrus.Fatalf("%+v", err)
	}
	defer instance.Destroy()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(instance.PhysicalDevicesInfo()); err != nil {
		logrus.Fatalf("%+v", err)
	}
}
