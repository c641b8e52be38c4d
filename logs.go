package k8sfixture

import (
	"bufio"
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
)

// GetLogs streams the logs of the given pod and returns them as discrete
// lines. A nil opts streams the main container's full log.
func (c *Client) GetLogs(pod *corev1.Pod, opts *corev1.PodLogOptions) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if opts == nil {
		opts = &corev1.PodLogOptions{}
	}

	stream, err := c.core.CoreV1().Pods(c.namespace).GetLogs(pod.Name, opts).Stream(context.Background())
	if err != nil {
		return nil, fmt.Errorf("stream logs of pod %s: %w", pod.Name, err)
	}
	defer stream.Close() //nolint:errcheck // read-only stream; close errors carry no information here

	var lines []string
	scanner := bufio.NewScanner(stream)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read logs of pod %s: %w", pod.Name, err)
	}
	return lines, nil
}
