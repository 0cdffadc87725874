// Copyright 2017 Capsule8, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

import (
	"sync"

	"github.com/golang/glog"
)

// Service is a long running component that serves on its own goroutine
// alongside the sampler.
type Service interface {
	// Name returns a human-readable name for the service.
	Name() string

	// Serve runs the service on the calling goroutine until it is
	// stopped.
	Serve() error

	// Stop stops a running service.
	Stop()
}

// ServiceManager runs a set of services and stops them together.
type ServiceManager struct {
	services []Service
	wg       sync.WaitGroup
}

// NewServiceManager returns an empty ServiceManager.
func NewServiceManager() *ServiceManager {
	return &ServiceManager{}
}

// RegisterService adds a service to be started by Start.
func (sm *ServiceManager) RegisterService(service Service) {
	sm.services = append(sm.services, service)
}

// Start starts every registered service, each on its own goroutine.
func (sm *ServiceManager) Start() {
	for _, service := range sm.services {
		sm.wg.Add(1)
		go func(service Service) {
			defer sm.wg.Done()
			glog.V(1).Infof("Starting %s", service.Name())
			if err := service.Serve(); err != nil {
				glog.V(1).Infof("%s stopped: %s", service.Name(), err)
			}
		}(service)
	}
}

// Stop stops every registered service and waits for them to return.
func (sm *ServiceManager) Stop() {
	for _, service := range sm.services {
		glog.V(1).Infof("Stopping %s", service.Name())
		service.Stop()
	}
	sm.wg.Wait()
}
