package domain

import "fmt"

// ConfigurationDescriptor identifies which service configuration produced a balance change.
// It is comparable and used as a grouping key.
type ConfigurationDescriptor struct {
	ServiceName             string `json:"service_name"`
	ServiceConfigurationKey string `json:"service_configuration_key"`
}

// NewConfigurationDescriptor creates a ConfigurationDescriptor.
func NewConfigurationDescriptor(serviceName, serviceConfigurationKey string) ConfigurationDescriptor {
	return ConfigurationDescriptor{
		ServiceName:             serviceName,
		ServiceConfigurationKey: serviceConfigurationKey,
	}
}

// String returns the string representation.
func (c ConfigurationDescriptor) String() string {
	return fmt.Sprintf("%s/%s", c.ServiceName, c.ServiceConfigurationKey)
}
