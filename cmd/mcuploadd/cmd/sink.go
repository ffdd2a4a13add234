package cmd

import (
	"github.com/apex/log"
	"github.com/materials-commons/mcupload/pkg/config"
	"github.com/materials-commons/mcupload/pkg/sink"
)

// mustSetupSink builds the sink registry. The file provider is always
// registered so refs written before a switch to sftp still resolve. The
// returned func closes the sftp connection, if any.
func mustSetupSink(c config.Configer) (*sink.Registry, func()) {
	uploadTo := c.GetKeyWithDefault(config.KeyUploadTo, config.DefaultUploadTo)
	dir := c.GetKeyWithDefault(config.KeyDir, config.DefaultDir)
	fsProvider := sink.NewOsFsProvider(dir, uploadTo)

	switch provider := c.GetKeyWithDefault(config.KeySink, config.DefaultSinkProvider); provider {
	case sink.FileScheme:
		log.Infof("Storing uploads under %s", dir)
		return sink.NewRegistry(fsProvider), func() {}
	case sink.SFTPScheme:
		host := c.MustGetKey(config.KeySFTPHost)
		sftpProvider, err := sink.DialSFTPProvider(
			host,
			c.MustGetKey(config.KeySFTPUser),
			c.GetKey(config.KeySFTPPassword),
			c.GetKey(config.KeySFTPKnownHosts),
			c.GetKeyWithDefault(config.KeySFTPDir, "."),
			uploadTo)
		if err != nil {
			log.Fatalf("Unable to connect to sftp sink: %s", err)
		}

		log.Infof("Storing uploads on %s", host)
		return sink.NewRegistry(sftpProvider, fsProvider), func() { _ = sftpProvider.Close() }
	default:
		log.Fatalf("Unknown sink provider '%s'", provider)
		return nil, nil
	}
}
